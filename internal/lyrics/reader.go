package lyrics

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/liuzl/gocc"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// TextConverter rewrites cue text after parsing, e.g. script conversion.
type TextConverter interface {
	Convert(text string) string
}

// ReadOptions controls ReadFile.
type ReadOptions struct {
	Converter TextConverter // nil leaves text untouched
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadFile loads and parses an LRC file. A UTF-8 BOM is stripped and
// content that is not valid UTF-8 is decoded as GBK.
func ReadFile(path string, opts ReadOptions) ([]Cue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := decodeText(data)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	cues := Parse(text)
	if opts.Converter != nil {
		for i := range cues {
			cues[i].Text = opts.Converter.Convert(cues[i].Text)
			cues[i].Translation = opts.Converter.Convert(cues[i].Translation)
		}
	}
	return cues, nil
}

func decodeText(data []byte) (string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		return string(data[len(utf8BOM):]), nil
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	r := transform.NewReader(bytes.NewReader(data), simplifiedchinese.GBK.NewDecoder())
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode as GBK: %w", err)
	}
	return string(out), nil
}

// OpenCC converts Traditional Chinese to Simplified with gocc.
type OpenCC struct {
	cc *gocc.OpenCC
}

// NewOpenCC loads the t2s conversion tables.
func NewOpenCC() (*OpenCC, error) {
	cc, err := gocc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("init OpenCC t2s: %w", err)
	}
	log.Println("OpenCC converter (t2s) initialized")
	return &OpenCC{cc: cc}, nil
}

// Convert returns text unchanged if conversion fails.
func (c *OpenCC) Convert(text string) string {
	if text == "" {
		return text
	}
	out, err := c.cc.Convert(text)
	if err != nil {
		log.Printf("OpenCC: convert %q failed: %v", text, err)
		return text
	}
	return out
}
