// Package action encodes the callback data carried by inline buttons.
//
// Wire format: pipe-delimited tokens, first token is the verb.
//
//	search|<category>|<title>
//	ep|<category>|<title>|<season>|<episode>
//	pickseason|<category>|<title>
//	redo|<target>   target = single|cat|title, ep|cat|title|s|e or poster|cat|title|s
package action

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"catalog-tg-bot/internal/storage"
)

var ErrMalformed = errors.New("malformed callback data")

// MaxCallbackData is the Bot API limit for callback_data, in bytes.
const MaxCallbackData = 64

type Action interface {
	Encode() string
	isAction()
}

// Target is something a redo button can deliver again.
type Target interface {
	Encode() string
	isTarget()
}

type Search struct {
	Category storage.Category
	Title    string
}

type Episode struct {
	Category storage.Category
	Title    string
	Season   int
	Episode  int
}

type PickSeason struct {
	Category storage.Category
	Title    string
}

type Redo struct {
	Target Target
}

type Single struct {
	Category storage.Category
	Title    string
}

type Poster struct {
	Category storage.Category
	Title    string
	Season   int
}

func (Search) isAction()     {}
func (Episode) isAction()    {}
func (PickSeason) isAction() {}
func (Redo) isAction()       {}

func (Single) isTarget()  {}
func (Episode) isTarget() {}
func (Poster) isTarget()  {}

func (a Search) Encode() string {
	return join("search", string(a.Category), a.Title)
}

func (a Episode) Encode() string {
	return join("ep", string(a.Category), a.Title, strconv.Itoa(a.Season), strconv.Itoa(a.Episode))
}

func (a PickSeason) Encode() string {
	return join("pickseason", string(a.Category), a.Title)
}

func (a Redo) Encode() string {
	if a.Target == nil {
		return "redo"
	}
	return "redo|" + a.Target.Encode()
}

func (t Single) Encode() string {
	return join("single", string(t.Category), t.Title)
}

func (t Poster) Encode() string {
	return join("poster", string(t.Category), t.Title, strconv.Itoa(t.Season))
}

func join(parts ...string) string { return strings.Join(parts, "|") }

// Decode parses callback data. Titles may themselves contain '|': numeric fields are taken
// from the end and the rest of the tokens form the title.
func Decode(data string) (Action, error) {
	verb, rest, _ := strings.Cut(strings.TrimSpace(data), "|")
	switch verb {
	case "search":
		cat, title, err := catTitle(rest)
		if err != nil {
			return nil, err
		}
		return Search{Category: cat, Title: title}, nil
	case "pickseason":
		cat, title, err := catTitle(rest)
		if err != nil {
			return nil, err
		}
		return PickSeason{Category: cat, Title: title}, nil
	case "ep":
		return decodeEpisode(rest)
	case "redo":
		t, err := DecodeTarget(rest)
		if err != nil {
			return nil, err
		}
		return Redo{Target: t}, nil
	}
	return nil, fmt.Errorf("%w: unknown verb %q", ErrMalformed, verb)
}

// DecodeTarget parses a redelivery token.
func DecodeTarget(token string) (Target, error) {
	kind, rest, _ := strings.Cut(token, "|")
	switch kind {
	case "single":
		cat, title, err := catTitle(rest)
		if err != nil {
			return nil, err
		}
		return Single{Category: cat, Title: title}, nil
	case "ep":
		return decodeEpisode(rest)
	case "poster":
		parts := strings.Split(rest, "|")
		if len(parts) < 3 {
			return nil, fmt.Errorf("%w: poster needs 3 fields", ErrMalformed)
		}
		season, err := number(parts[len(parts)-1])
		if err != nil {
			return nil, err
		}
		cat, title, err := catTitle(strings.Join(parts[:len(parts)-1], "|"))
		if err != nil {
			return nil, err
		}
		return Poster{Category: cat, Title: title, Season: season}, nil
	}
	return nil, fmt.Errorf("%w: unknown redo target %q", ErrMalformed, kind)
}

func decodeEpisode(rest string) (Episode, error) {
	parts := strings.Split(rest, "|")
	if len(parts) < 4 {
		return Episode{}, fmt.Errorf("%w: episode needs 4 fields", ErrMalformed)
	}
	season, err := number(parts[len(parts)-2])
	if err != nil {
		return Episode{}, err
	}
	ep, err := number(parts[len(parts)-1])
	if err != nil {
		return Episode{}, err
	}
	cat, title, err := catTitle(strings.Join(parts[:len(parts)-2], "|"))
	if err != nil {
		return Episode{}, err
	}
	return Episode{Category: cat, Title: title, Season: season, Episode: ep}, nil
}

func catTitle(rest string) (storage.Category, string, error) {
	cat, title, ok := strings.Cut(rest, "|")
	if !ok || cat == "" || title == "" {
		return "", "", fmt.Errorf("%w: expected category|title, got %q", ErrMalformed, rest)
	}
	return storage.Category(cat), title, nil
}

func number(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad number %q", ErrMalformed, s)
	}
	return n, nil
}
