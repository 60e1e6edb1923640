/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package words

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/viper"
)

const maxListSize = 1 << 20

// Source loads a word list from somewhere outside the binary.
type Source interface {
	Fetch(ctx context.Context) ([]Pair, error)
	String() string
}

// SourceFor picks a source for location: http(s) URLs are fetched, anything
// else is read as a local file. An empty location yields nil.
func SourceFor(location string) Source {
	switch {
	case location == "":
		return nil
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return &HTTPSource{URL: location}
	default:
		return &FileSource{Path: location}
	}
}

// HTTPSource fetches a JSON array of two-element string arrays, e.g.
// [["pencil","pen"],["coffee","tea"]].
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) String() string {
	return s.URL
}

func (s *HTTPSource) Fetch(ctx context.Context) ([]Pair, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var raw [][]string
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListSize)).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode word list: %w", err)
	}

	return toPairs(raw)
}

// FileSource reads a JSON, YAML or TOML file with a top-level "pairs" key:
//
//	pairs:
//	  - [pencil, pen]
//	  - [coffee, tea]
type FileSource struct {
	Path string
}

func (s *FileSource) String() string {
	return s.Path
}

func (s *FileSource) Fetch(ctx context.Context) ([]Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(s.Path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var raw [][]string
	if err := v.UnmarshalKey("pairs", &raw); err != nil {
		return nil, fmt.Errorf("decode word list: %w", err)
	}

	return toPairs(raw)
}

func toPairs(raw [][]string) ([]Pair, error) {
	pairs := make([]Pair, 0, len(raw))

	for i, words := range raw {
		if len(words) != 2 {
			return nil, fmt.Errorf("%w at index %d: want 2 words, got %d", ErrInvalidPair, i, len(words))
		}
		pairs = append(pairs, Pair{words[0], words[1]})
	}

	return pairs, nil
}
