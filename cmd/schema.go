package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/extract-relay/internal/schema"
)

var schemaShape bool

var schemaCmd = &cobra.Command{
	Use:   "schema <file.json>",
	Short: "Compile a field tree (or an example shape) and print the schema document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("schema"); err != nil {
			return err
		}
		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		return printSchema(cmd.OutOrStdout(), data, schemaShape)
	},
}

// printSchema compiles data and writes the indented document to w. data is
// either a bare field array or an object with a "fields" key, or an example
// shape when shape is set.
func printSchema(w io.Writer, data []byte, shape bool) error {
	var (
		doc *schema.Document
		err error
	)
	if shape {
		doc, err = schema.CompileShape(data)
	} else {
		var fields []schema.Field
		fields, err = decodeFields(data)
		if err != nil {
			return err
		}
		doc, err = schema.CompileFields(fields)
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return eris.Wrap(err, "marshal schema")
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

func decodeFields(data []byte) ([]schema.Field, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var fields []schema.Field
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, eris.Wrap(err, "decode field array")
		}
		return fields, nil
	}
	var wrapped struct {
		Fields []schema.Field `json:"fields"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return nil, eris.Wrap(err, "decode field tree")
	}
	if len(wrapped.Fields) == 0 {
		return nil, eris.New("field tree has no fields")
	}
	return wrapped.Fields, nil
}

func init() {
	schemaCmd.Flags().BoolVar(&schemaShape, "shape", false, "treat the file as an example shape instead of a field tree")
	rootCmd.AddCommand(schemaCmd)
}
