package reel

import "fmt"

// StageMoves stages a move for every record matching filters. An empty
// template or root falls back to the configured defaults.
func (s *Service) StageMoves(filters []string, template, root string) (int, error) {
	records, err := s.Records(filters)
	if err != nil {
		return 0, err
	}
	if template == "" {
		template = s.settings.Template
	}
	if root == "" {
		root = s.settings.Root
	}

	cmds := make([]Command, 0, len(records))
	for _, r := range records {
		cmds = append(cmds, NewMoveFile(s.fsmgr, r, template, root).WithLogger(s.logger))
	}
	if err := s.stage(cmds); err != nil {
		return 0, err
	}
	s.logger.Info("staged moves", "count", len(cmds), "template", template)
	return len(cmds), nil
}

// StageUpdates stages a metadata update from the named source for every
// matching record. If any record cannot supply the source's required
// parameters nothing is staged and every miss is reported.
func (s *Service) StageUpdates(sourceName string, filters []string) (int, error) {
	src, ok := s.sources.Get(sourceName)
	if !ok {
		return 0, fmt.Errorf("unknown source %q (registered: %v)", sourceName, s.sources.Names())
	}
	records, err := s.Records(filters)
	if err != nil {
		return 0, err
	}

	var violations []error
	cmds := make([]Command, 0, len(records))
	for _, r := range records {
		cmd, err := NewUpdateMetadata(r, src)
		if err != nil {
			violations = append(violations, fmt.Errorf("%s: %w", r.Filename(), err))
			continue
		}
		cmds = append(cmds, cmd)
	}
	if err := NewValidationError(violations); err != nil {
		return 0, err
	}
	if err := s.stage(cmds); err != nil {
		return 0, err
	}
	s.logger.Info("staged updates", "source", src.Name(), "count", len(cmds))
	return len(cmds), nil
}

// StageUserData stages override values for every matching record.
func (s *Service) StageUserData(filters []string, values map[string]any) (int, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("no values to set")
	}
	records, err := s.Records(filters)
	if err != nil {
		return 0, err
	}
	cmds := make([]Command, 0, len(records))
	for _, r := range records {
		cmds = append(cmds, NewSetUserData(r, values))
	}
	if err := s.stage(cmds); err != nil {
		return 0, err
	}
	return len(cmds), nil
}

// StageDirectory stages creation of a single directory.
func (s *Service) StageDirectory(path string) error {
	if err := s.load(); err != nil {
		return err
	}
	cmd, err := NewCreateDirectory(s.fsmgr, path)
	if err != nil {
		return err
	}
	return s.stage([]Command{cmd})
}
