package normalize

import (
	"fmt"

	"github.com/longbridgeapp/opencc"
)

// Converter rewrites text into the canonical script variant.
type Converter interface {
	Convert(s string) string
}

// Identity leaves text untouched.
type Identity struct{}

// Convert returns s unchanged.
func (Identity) Convert(s string) string { return s }

// OpenCC converts traditional Chinese to simplified Chinese.
type OpenCC struct {
	cc *opencc.OpenCC
}

// NewOpenCC loads the t2s conversion tables.
func NewOpenCC() (*OpenCC, error) {
	cc, err := opencc.New("t2s")
	if err != nil {
		return nil, fmt.Errorf("load opencc t2s: %w", err)
	}
	return &OpenCC{cc: cc}, nil
}

// Convert returns the simplified form of s, or s itself if conversion fails.
func (o *OpenCC) Convert(s string) string {
	if s == "" {
		return s
	}
	out, err := o.cc.Convert(s)
	if err != nil {
		return s
	}
	return out
}
