package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"roadplan/internal/util/jsonutil"
)

func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (o *rootOptions) writeJSON(cmd *cobra.Command, v any) error {
	var (
		out []byte
		err error
	)
	if o.pretty {
		out, err = jsonutil.MarshalIndentNoEscape(v)
	} else {
		out, err = jsonutil.MarshalNoEscape(v)
	}
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	w := cmd.OutOrStdout()
	if _, err := w.Write(out); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

func budgetFlag(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("budget") {
		return nil
	}
	v, _ := cmd.Flags().GetFloat64("budget")
	return &v
}
