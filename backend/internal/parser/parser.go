package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"lifegraph/backend/internal/record"
	apperrors "lifegraph/backend/pkg/errors"
	"lifegraph/backend/pkg/logger"
)

// Kind names a source format
type Kind string

const (
	KindAuto     Kind = "auto"
	KindMarkdown Kind = "markdown"
	KindFacebook Kind = "facebook"
	KindAncestry Kind = "ancestry"
)

// Parser turns one source (a file or an export directory) into a record
type Parser interface {
	Parse(ctx context.Context, path string) (*record.PersonRecord, error)
	Kind() Kind
}

// Option configures a parser
type Option func(*settings)

type settings struct {
	logger      *zap.Logger
	clock       func() time.Time
	focusPerson string
}

// WithLogger sets the logger used for swallowed sub-section failures
func WithLogger(log *zap.Logger) Option {
	return func(s *settings) {
		s.logger = log
	}
}

// WithClock overrides the time source for export timestamps
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		s.clock = clock
	}
}

// WithFocusPerson selects whose family tree a genealogy file is read for
func WithFocusPerson(name string) Option {
	return func(s *settings) {
		s.focusPerson = name
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		logger: logger.Get(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// ParseKind validates a user-supplied source type. The empty string means auto.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return KindAuto, nil
	case KindAuto, KindMarkdown, KindFacebook, KindAncestry:
		return k, nil
	default:
		return "", fmt.Errorf("unknown source type %q (want auto, markdown, facebook or ancestry)", s)
	}
}

// Detect guesses the format of path: directories are social-network
// exports, .ged/.gedcom files are family trees, everything else markdown.
func Detect(path string) (Kind, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", apperrors.NewSourceParseFailed(path, err)
	}
	if info.IsDir() {
		return KindFacebook, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ged", ".gedcom":
		return KindAncestry, nil
	default:
		return KindMarkdown, nil
	}
}

// New returns the parser for kind. KindAuto resolves through Detect.
func New(kind Kind, path string, opts ...Option) (Parser, error) {
	if kind == KindAuto || kind == "" {
		detected, err := Detect(path)
		if err != nil {
			return nil, err
		}
		kind = detected
	}

	switch kind {
	case KindMarkdown:
		return NewMarkdownParser(opts...), nil
	case KindFacebook:
		return NewFacebookParser(opts...), nil
	case KindAncestry:
		return NewGedcomParser(opts...), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", kind)
	}
}

// readFile wraps os.ReadFile so every fatal read error carries the path
func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewSourceParseFailed(path, err)
	}
	return data, nil
}
