// Package catalog builds the locale-indexed message catalog of a generated
// package: the project's name and description, and one display name per
// layout, in every locale they are known in.
package catalog

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Message is one catalog entry, in the shape the platform reads.
type Message struct {
	Message string `json:"message"`
}

// Catalog maps locale to message key to message. Locales keep the order they
// were first written in. Entries are never overwritten.
type Catalog struct {
	order   []string
	buckets map[string]map[string]Message
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{buckets: make(map[string]map[string]Message)}
}

// Set stores text under key in locale's bucket. It reports false, and leaves
// the catalog unchanged, if the key is already present.
func (c *Catalog) Set(locale, key, text string) bool {
	bucket, ok := c.buckets[locale]
	if !ok {
		bucket = make(map[string]Message)
		c.buckets[locale] = bucket
		c.order = append(c.order, locale)
	}
	if _, exists := bucket[key]; exists {
		return false
	}
	bucket[key] = Message{Message: text}
	return true
}

// Get returns the text stored under key for locale.
func (c *Catalog) Get(locale, key string) (string, bool) {
	m, ok := c.buckets[locale][key]
	return m.Message, ok
}

// Locales returns the catalog's locales in insertion order.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.order...)
}

// Keys returns the message keys of a locale, sorted.
func (c *Catalog) Keys(locale string) []string {
	bucket := c.buckets[locale]
	out := make([]string, 0, len(bucket))
	for k := range bucket {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Messages returns a copy of a locale's bucket.
func (c *Catalog) Messages(locale string) map[string]Message {
	bucket := c.buckets[locale]
	out := make(map[string]Message, len(bucket))
	for k, v := range bucket {
		out[k] = v
	}
	return out
}

// MarshalLocale renders one locale's messages.json.
func (c *Catalog) MarshalLocale(locale string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c.Messages(locale)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
