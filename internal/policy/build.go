package policy

// NewEngineFromFiles loads the base policy at policyPath (defaults when the
// file is absent), merges enabled packs from packsDir, and returns an engine
// over the result along with the pack listing.
func NewEngineFromFiles(policyPath, packsDir string) (*Engine, []PackInfo, error) {
	base, err := Load(policyPath)
	if err != nil {
		return nil, nil, err
	}

	merged := base
	var infos []PackInfo
	if packsDir != "" {
		merged, infos, err = LoadPacks(packsDir, base)
		if err != nil {
			return nil, nil, err
		}
	}

	engine, err := NewEngine(merged)
	if err != nil {
		return nil, nil, err
	}
	return engine, infos, nil
}
