package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/strata/pkg/core"
	"github.com/spf13/cobra"
)

var indexFile string

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index <repository>",
	Short: "Index newline-delimited JSON documents",
	Long: `Read one JSON object per line from --file (or stdin) and index it into the repository.
An "_id" field, when present, becomes the document id.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		m := openManager(loadConfig())

		repo, err := m.GetRepository(args[0])
		if err != nil {
			fatal("Failed to resolve repository", err)
		}

		var in io.Reader = os.Stdin
		if indexFile != "" {
			f, err := os.Open(indexFile)
			if err != nil {
				fatal("Failed to open input", err)
			}
			defer f.Close()
			in = f
		}

		docs, err := decodeDocuments(in, m.Converter(), args[0], repo.StorageTypes()[0])
		if err != nil {
			fatal("Failed to read documents", err)
		}

		ctx := context.Background()
		for _, doc := range docs {
			if err := m.Persist(ctx, doc); err != nil {
				fatal("Failed to persist document", err)
			}
		}
		if err := m.Commit(ctx); err != nil {
			fatal("Failed to commit", err)
		}

		fmt.Printf("%d document(s) indexed into '%s'.\n", len(docs), args[0])
	},
}

// decodeDocuments turns NDJSON lines into documents of the given repository.
func decodeDocuments(r io.Reader, conv core.Converter, repository, storageType string) ([]core.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var docs []core.Document
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		id, source, err := splitID(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		doc, err := conv.ConvertToDocument(core.Hit{Type: storageType, Repository: repository, ID: id, Source: source})
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

// splitID removes the _id field from a JSON object and returns it separately.
func splitID(raw []byte) (string, json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", nil, err
	}
	if fields == nil {
		return "", nil, fmt.Errorf("expected a JSON object")
	}

	var id string
	if v, ok := fields[core.IDField]; ok {
		id = fmt.Sprint(v)
		delete(fields, core.IDField)
	}
	source, err := json.Marshal(fields)
	if err != nil {
		return "", nil, err
	}
	return id, source, nil
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().StringVarP(&indexFile, "file", "f", "", "NDJSON file to read (default: stdin)")
}
