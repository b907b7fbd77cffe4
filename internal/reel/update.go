package reel

import (
	"context"
	"fmt"
)

// UpdateMetadata fetches data from a source and attaches it to a record,
// keeping the previous block so the update can be reversed.
type UpdateMetadata struct {
	record *MediaRecord
	source MetadataSource
	params Params

	// merge folds fetched keys into the existing block instead of replacing
	// it. Used for user overrides.
	merge bool

	prior    *MetadataBlock
	hadPrior bool

	state CommandState
}

var _ Command = (*UpdateMetadata)(nil)

// NewUpdateMetadata binds the source's parameters from the record. A required
// parameter the record cannot supply fails here with *MissingParameterError.
func NewUpdateMetadata(record *MediaRecord, source MetadataSource) (*UpdateMetadata, error) {
	params, err := BindParams(source, record)
	if err != nil {
		return nil, err
	}
	return &UpdateMetadata{
		record: record,
		source: source,
		params: params,
		state:  StateStaged,
	}, nil
}

// NewSetUserData stages override values merged into the record's user block.
func NewSetUserData(record *MediaRecord, values map[string]any) *UpdateMetadata {
	return &UpdateMetadata{
		record: record,
		source: UserDataSource{},
		params: Params(values),
		merge:  true,
		state:  StateStaged,
	}
}

func (u *UpdateMetadata) State() CommandState  { return u.state }
func (u *UpdateMetadata) Record() *MediaRecord { return u.record }
func (u *UpdateMetadata) SourceName() string   { return u.source.Name() }

func (u *UpdateMetadata) Describe() string {
	if u.merge {
		return fmt.Sprintf("set %s on %s", formatParams(u.params), u.record.Filename())
	}
	return fmt.Sprintf("update %s metadata for %s", u.source.Name(), u.record.Filename())
}

func (u *UpdateMetadata) Execute(ctx context.Context) error {
	if u.state != StateStaged {
		return &StateError{Op: "execute", State: u.state}
	}
	if err := CheckParams(u.source, u.params); err != nil {
		return err
	}

	block, err := u.source.Fetch(ctx, u.params)
	if err != nil {
		return fmt.Errorf("fetching %s data for %s: %w", u.source.Name(), u.record.Filename(), err)
	}

	prior, had := u.record.SourceData(u.source.Name())
	if u.merge && had {
		merged := prior.Clone()
		for _, k := range block.Keys() {
			v, _ := block.Get(k)
			merged.Set(k, v)
		}
		block = merged
	}

	u.prior, u.hadPrior = prior, had
	u.record.AttachSourceData(u.source.Name(), block)
	u.state = StateExecuted
	return nil
}

func (u *UpdateMetadata) Undo(ctx context.Context) error {
	if u.state != StateExecuted {
		return &StateError{Op: "undo", State: u.state}
	}
	if u.hadPrior {
		u.record.AttachSourceData(u.source.Name(), u.prior)
	} else {
		u.record.RemoveSourceData(u.source.Name())
	}
	u.prior, u.hadPrior = nil, false
	u.state = StateUndone
	return nil
}

func (u *UpdateMetadata) ValidateExec() []error {
	var violations []error
	if u.state != StateStaged {
		violations = append(violations, &StateError{Op: "execute", State: u.state})
	}
	return appendErr(violations, CheckParams(u.source, u.params))
}

func (u *UpdateMetadata) ValidateUndo() []error {
	if u.state != StateExecuted {
		return []error{&StateError{Op: "undo", State: u.state}}
	}
	return nil
}

func (u *UpdateMetadata) Spec() CommandSpec {
	return CommandSpec{
		Kind:        KindUpdateMetadata,
		State:       u.state,
		Fingerprint: u.record.Fingerprint(),
		SourceName:  u.source.Name(),
		Params:      u.params,
		Merge:       u.merge,
		Prior:       u.prior.Clone(),
		HadPrior:    u.hadPrior,
	}
}

// UserDataSource returns its parameters as the block. It backs manual
// overrides and is never registered.
type UserDataSource struct{}

func (UserDataSource) Name() string             { return UserSource }
func (UserDataSource) RequiredParams() []string { return nil }
func (UserDataSource) OptionalParams() []string { return nil }

func (UserDataSource) Fetch(_ context.Context, params Params) (*MetadataBlock, error) {
	return NewMetadataBlock(map[string]any(params)), nil
}

func formatParams(p Params) string {
	var s string
	for i, k := range sortedKeys(map[string]any(p)) {
		if i > 0 {
			s += ", "
		}
		s += k + "=" + FormatValue(p[k])
	}
	return s
}
