package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"go.uber.org/zap"
)

const fileMode = 0o644

// Load replaces the inventory with the document stored at path. A missing file
// yields an empty inventory. Content that does not decode as an inventory
// document also yields an empty inventory and is reported on the logger.
// Any other failure is returned and leaves the inventory untouched.
func (inv *Inventory) Load(path string) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			inv.logger.Debug("inventory file not found, starting empty", zap.String("path", path))
			inv.reset(nil)
			return nil
		}
		return fmt.Errorf("load inventory: %w", err)
	}

	entries, err := decodeDocument(data)
	if err != nil {
		inv.logger.Warn("error decoding inventory data",
			zap.String("path", path),
			zap.Error(err),
		)
		inv.reset(nil)
		return nil
	}

	inv.reset(entries)
	inv.logger.Debug("inventory loaded", zap.String("path", path), zap.Int("items", inv.Len()))

	return nil
}

// Save writes the whole inventory to path. The document is written to a
// temporary file next to path and renamed over it.
func (inv *Inventory) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}

	data, err := encodeDocument(inv.Items())
	if err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("save inventory: %w", err)
	}

	inv.logger.Debug("inventory saved", zap.String("path", path), zap.Int("items", inv.Len()))

	return nil
}

// encodeDocument renders entries as a single JSON object in entry order,
// using the `{"key": value, ...}` layout. A key that is not valid UTF-8 fails
// with ErrInvalidItem.
func encodeDocument(entries []Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteString(", ")
		}
		if !utf8.ValidString(e.Item) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidItem, e.Item)
		}
		key, err := json.Marshal(e.Item)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteString(": ")
		buf.WriteString(strconv.Itoa(e.Quantity))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeDocument parses a JSON object of integer quantities, keeping key order.
func decodeDocument(data []byte) ([]Entry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: document is not an object", ErrMalformedData)
	}

	var entries []Entry
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected token %v", ErrMalformedData, tok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
		}
		qty, err := strconv.Atoi(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: quantity of %q is not an integer: %s", ErrMalformedData, key, raw)
		}

		entries = append(entries, Entry{Item: key, Quantity: qty})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedData, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedData)
	}

	return entries, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}

	return nil
}
