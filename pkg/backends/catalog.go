package backends

// ModelCatalog is the set of models a backend serves, with their cost
// profiles and the backend's default model. Adapters embed a catalog to
// satisfy the model-introspection half of the Backend interface.
type ModelCatalog struct {
	models       map[string]ModelInfo
	defaultModel string
}

// NewModelCatalog creates a catalog. The default model must be a key of
// the models map.
func NewModelCatalog(models map[string]ModelInfo, defaultModel string) ModelCatalog {
	if models == nil {
		models = make(map[string]ModelInfo)
	}
	return ModelCatalog{
		models:       models,
		defaultModel: defaultModel,
	}
}

// SupportsModel reports whether the model is in the catalog.
func (c ModelCatalog) SupportsModel(model string) bool {
	_, ok := c.models[model]
	return ok
}

// ModelInfo returns the cost profile for a model.
func (c ModelCatalog) ModelInfo(model string) (ModelInfo, bool) {
	info, ok := c.models[model]
	return info, ok
}

// DefaultModel returns the catalog's default model.
func (c ModelCatalog) DefaultModel() string {
	return c.defaultModel
}

// Models returns the model identifiers in the catalog. Order is not
// guaranteed.
func (c ModelCatalog) Models() []string {
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	return names
}
