package testutil

import (
	"context"

	"reel-go/internal/reel"
)

// StubSource is a MetadataSource returning canned data. It records every
// params map it was fetched with.
type StubSource struct {
	SourceName string
	Required   []string
	Optional   []string
	Data       map[string]any
	Err        error

	Calls []reel.Params
}

// NewStubSource returns a source named name that requires params and returns
// data.
func NewStubSource(name string, data map[string]any, required ...string) *StubSource {
	return &StubSource{SourceName: name, Data: data, Required: required}
}

func (s *StubSource) Name() string             { return s.SourceName }
func (s *StubSource) RequiredParams() []string { return s.Required }
func (s *StubSource) OptionalParams() []string { return s.Optional }

func (s *StubSource) Fetch(_ context.Context, params reel.Params) (*reel.MetadataBlock, error) {
	s.Calls = append(s.Calls, params)
	if err := reel.CheckParams(s, params); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return reel.NewMetadataBlock(s.Data), nil
}

var _ reel.MetadataSource = (*StubSource)(nil)
