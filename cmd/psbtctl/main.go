// Copyright (c) 2018 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command psbtctl is a small inspection and manipulation tool for Partially
// Signed Bitcoin Transactions: it decodes, combines, finalizes, extracts,
// and compresses the packets this package's psbt library understands.
package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"

	"github.com/psbtkit/psbtkit/build"
	"github.com/psbtkit/psbtkit/psbt"
	"github.com/davecgh/go-spew/spew"
	flags "github.com/jessevdk/go-flags"
)

func init() {
	psbt.UseLogger(build.NewSubLogger("PSBT", nil))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func readPacket(path string) (*psbt.Packet, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return psbt.Parse(string(raw))
}

func writePacket(path string, p *psbt.Packet) error {
	text, err := p.Base64()
	if err != nil {
		return err
	}

	return ioutil.WriteFile(path, []byte(text+"\n"), 0644)
}

// decodeCmd dumps a packet's parsed structure to stdout.
type decodeCmd struct {
	Positional struct {
		Path string `positional-arg-name:"psbt-file" required:"true"`
	} `positional-args:"yes"`
}

func (c *decodeCmd) Execute(_ []string) error {
	p, err := readPacket(c.Positional.Path)
	if err != nil {
		return err
	}

	spew.Dump(p)

	return nil
}

// combineCmd merges two or more packets sharing the same unsigned
// transaction into one, writing the result to -o.
type combineCmd struct {
	Output     string `short:"o" long:"out" required:"true" description:"output file"`
	Positional struct {
		Paths []string `positional-arg-name:"psbt-file" required:"2"`
	} `positional-args:"yes"`
}

func (c *combineCmd) Execute(_ []string) error {
	out, err := readPacket(c.Positional.Paths[0])
	if err != nil {
		return err
	}

	for _, path := range c.Positional.Paths[1:] {
		other, err := readPacket(path)
		if err != nil {
			return err
		}

		out, err = out.Combine(other)
		if err != nil {
			return err
		}
	}

	return writePacket(c.Output, out)
}

// finalizeCmd finalizes every input of a packet, writing the result to -o.
type finalizeCmd struct {
	Output     string `short:"o" long:"out" required:"true" description:"output file"`
	Positional struct {
		Path string `positional-arg-name:"psbt-file" required:"true"`
	} `positional-args:"yes"`
}

func (c *finalizeCmd) Execute(_ []string) error {
	p, err := readPacket(c.Positional.Path)
	if err != nil {
		return err
	}

	if err := psbt.FinalizeAll(p); err != nil {
		return err
	}

	return writePacket(c.Output, p)
}

// extractCmd materializes the fully-signed transaction from a finalized
// packet and writes its raw hex encoding to -o.
type extractCmd struct {
	Output     string `short:"o" long:"out" required:"true" description:"output file"`
	Positional struct {
		Path string `positional-arg-name:"psbt-file" required:"true"`
	} `positional-args:"yes"`
}

func (c *extractCmd) Execute(_ []string) error {
	p, err := readPacket(c.Positional.Path)
	if err != nil {
		return err
	}

	tx, err := psbt.Extract(p)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return err
	}

	text := hex.EncodeToString(buf.Bytes())

	return ioutil.WriteFile(c.Output, []byte(text+"\n"), 0644)
}

// compressCmd downgrades NonWitnessUtxo records to WitnessUtxo wherever
// that's safe, writing the result to -o.
type compressCmd struct {
	Output     string `short:"o" long:"out" required:"true" description:"output file"`
	Positional struct {
		Path string `positional-arg-name:"psbt-file" required:"true"`
	} `positional-args:"yes"`
}

func (c *compressCmd) Execute(_ []string) error {
	p, err := readPacket(c.Positional.Path)
	if err != nil {
		return err
	}

	if err := psbt.CompressAll(p); err != nil {
		return err
	}

	return writePacket(c.Output, p)
}

func main() {
	parser := flags.NewParser(nil, flags.Default)

	if _, err := parser.AddCommand(
		"decode", "Dump a PSBT's parsed structure", "", &decodeCmd{},
	); err != nil {
		fatalf("%v", err)
	}
	if _, err := parser.AddCommand(
		"combine", "Combine two or more PSBTs", "", &combineCmd{},
	); err != nil {
		fatalf("%v", err)
	}
	if _, err := parser.AddCommand(
		"finalize", "Finalize every input of a PSBT", "", &finalizeCmd{},
	); err != nil {
		fatalf("%v", err)
	}
	if _, err := parser.AddCommand(
		"extract", "Extract the signed transaction from a PSBT", "",
		&extractCmd{},
	); err != nil {
		fatalf("%v", err)
	}
	if _, err := parser.AddCommand(
		"compress", "Downgrade NonWitnessUtxo records where safe", "",
		&compressCmd{},
	); err != nil {
		fatalf("%v", err)
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok &&
			flagsErr.Type == flags.ErrHelp {

			os.Exit(0)
		}

		fatalf("%v", err)
	}
}
