package schema

func builtinSchemas() map[string]*Schema {
	storageInline := &Schema{
		Type:     "object",
		Required: []string{"type"},
		Properties: map[string]*Schema{
			"type": {Type: "string"},
		},
	}

	linkSchema := &Schema{
		Type:     "object",
		Required: []string{"storage", "file"},
		Properties: map[string]*Schema{
			"storage": {OneOf: []*Schema{{Ref: "#url"}, storageInline}},
			"file":    {Ref: "#abs-path"},
		},
	}

	manifestPattern := &Schema{
		OneOf: []*Schema{
			{
				Type:     "object",
				Required: []string{"type", "path"},
				Properties: map[string]*Schema{
					"type": {Type: "string", Pattern: "^glob$"},
					"path": {Ref: "#pattern-glob"},
				},
			},
			{
				Type:     "object",
				Required: []string{"type", "paths"},
				Properties: map[string]*Schema{
					"type":  {Type: "string", Pattern: "^list$"},
					"paths": {Type: "array", Items: &Schema{Ref: "#abs-path"}},
				},
			},
		},
	}

	user := &Schema{
		Type:     "object",
		Required: []string{"object", "owner", "version", "pubkeys"},
		Properties: map[string]*Schema{
			"object":  {Type: "string", Pattern: "^user$"},
			"owner":   {Ref: "#fingerprint"},
			"version": {Ref: "#version"},
			"pubkeys": {Type: "array", Items: &Schema{Type: "string"}},
			"paths":   {Type: "array", Items: &Schema{Ref: "#abs-path"}},
			"manifests-catalog": {Type: "array", Items: &Schema{
				OneOf: []*Schema{{Ref: "#url"}, {Type: "object"}},
			}},
		},
	}

	container := &Schema{
		Type:     "object",
		Required: []string{"object", "owner", "version", "paths"},
		Properties: map[string]*Schema{
			"object":     {Type: "string", Pattern: "^container$"},
			"owner":      {Ref: "#fingerprint"},
			"version":    {Ref: "#version"},
			"paths":      {Type: "array", Items: &Schema{Ref: "#abs-path"}},
			"title":      {Type: "string"},
			"categories": {Type: "array", Items: &Schema{Ref: "#abs-path"}},
			"storages": {Type: "array", Items: &Schema{
				OneOf: []*Schema{{Ref: "#url"}, storageInline},
			}},
			"access": {Ref: "#access"},
		},
	}

	storage := &Schema{
		Type:     "object",
		Required: []string{"object", "owner", "version", "type", "backend-id", "container-path"},
		Properties: map[string]*Schema{
			"object":           {Type: "string", Pattern: "^storage$"},
			"owner":            {Ref: "#fingerprint"},
			"version":          {Ref: "#version"},
			"type":             {Type: "string"},
			"backend-id":       {Type: "string"},
			"container-path":   {Ref: "#abs-path"},
			"read-only":        {Type: "boolean"},
			"trusted":          {Type: "boolean"},
			"trusted-owner":    {Ref: "#fingerprint"},
			"manifest-pattern": manifestPattern,
			"reference-container": {
				OneOf: []*Schema{{Ref: "#url"}, {Type: "object"}},
			},
		},
	}

	bridge := &Schema{
		Type:     "object",
		Required: []string{"object", "owner", "version", "user", "pubkey", "paths"},
		Properties: map[string]*Schema{
			"object":  {Type: "string", Pattern: "^bridge$"},
			"owner":   {Ref: "#fingerprint"},
			"version": {Ref: "#version"},
			"user":    {OneOf: []*Schema{{Ref: "#url"}, linkSchema}},
			"pubkey":  {Type: "string"},
			"paths":   {Type: "array", Items: &Schema{Ref: "#abs-path"}},
		},
	}

	link := &Schema{
		Type:     "object",
		Required: []string{"object", "owner", "version", "storage", "file"},
		Properties: map[string]*Schema{
			"object":  {Type: "string", Pattern: "^link$"},
			"owner":   {Ref: "#fingerprint"},
			"version": {Ref: "#version"},
			"storage": {OneOf: []*Schema{{Ref: "#url"}, storageInline}},
			"file":    {Ref: "#abs-path"},
		},
	}

	return map[string]*Schema{
		"user":      user,
		"container": container,
		"storage":   storage,
		"bridge":    bridge,
		"link":      link,
	}
}
