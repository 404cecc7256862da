package main

import (
	"encoding/json"
	"fmt"

	"github.com/code-payments/prereq-client/pkg/tasks"
)

// print writes v as indented JSON under --output json, or the text lines
// otherwise.
func (c *cli) print(v interface{}, lines ...string) error {
	if c.output == "json" {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(c.out, line); err != nil {
			return err
		}
	}
	return nil
}

type receiptOutput struct {
	Signature string `json:"signature"`
	Explorer  string `json:"explorer"`
}

func newReceiptOutput(r tasks.Receipt) receiptOutput {
	return receiptOutput{
		Signature: r.Signature.String(),
		Explorer:  r.ExplorerURL,
	}
}

func (c *cli) printReceipt(summary string, r tasks.Receipt) error {
	return c.print(
		newReceiptOutput(r),
		summary,
		"Check out your TX here:",
		r.ExplorerURL,
	)
}
