package memsvc

// Config is the filtered construction configuration for a Service. It is
// decoded from the recognized subset of a request payload; unrecognized
// payload fields never reach it.
type Config struct {
	LLMProfiles    map[string]map[string]any `json:"llm_profiles,omitempty"`
	BlobConfig     *BlobConfig               `json:"blob_config,omitempty"`
	DatabaseConfig *DatabaseConfig           `json:"database_config,omitempty"`
	MemorizeConfig *MemorizeConfig           `json:"memorize_config,omitempty"`
	RetrieveConfig map[string]any            `json:"retrieve_config,omitempty"`
	WorkflowRunner string                    `json:"workflow_runner,omitempty"`
	UserConfig     *UserConfig               `json:"user_config,omitempty"`
}

// BlobConfig locates resource blobs on disk.
type BlobConfig struct {
	ResourcesDir string `json:"resources_dir,omitempty"`
}

// DatabaseConfig selects the metadata store backend.
type DatabaseConfig struct {
	MetadataStore *MetadataStore `json:"metadata_store,omitempty"`
}

// MetadataStore names a backend provider. "inmemory" keeps state only
// inside the daemon process; "sqlite" persists to Path.
type MetadataStore struct {
	Provider string `json:"provider,omitempty"`
	Path     string `json:"path,omitempty"`
}

// MemorizeConfig tunes how conversations are turned into memory items.
type MemorizeConfig struct {
	Categories      []CategoryRule `json:"categories,omitempty"`
	ChunkTargetSize int            `json:"chunk_target_size,omitempty"`
	ChunkMaxSize    int            `json:"chunk_max_size,omitempty"`
}

// CategoryRule assigns items to a category when any keyword matches.
type CategoryRule struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// UserConfig carries the default scoping identity.
type UserConfig struct {
	UserID  string `json:"user_id,omitempty"`
	AgentID string `json:"agent_id,omitempty"`
}

// defaultCategories are used when memorize_config supplies none.
var defaultCategories = []CategoryRule{
	{Name: "profile", Keywords: []string{"my name", "i am", "i'm", "call me", "years old"}},
	{Name: "preference", Keywords: []string{"i like", "i love", "i hate", "i prefer", "favorite", "favourite"}},
	{Name: "event", Keywords: []string{"yesterday", "today", "tomorrow", "last week", "next week", "happened"}},
	{Name: "activity"},
}

func (c Config) categories() []CategoryRule {
	if c.MemorizeConfig != nil && len(c.MemorizeConfig.Categories) > 0 {
		return c.MemorizeConfig.Categories
	}
	return defaultCategories
}

func (c Config) userID() string {
	if c.UserConfig != nil {
		return c.UserConfig.UserID
	}
	return ""
}
