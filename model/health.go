package model

// Version is reported by the service info and health endpoints
const Version = "1.0.0"

// HealthStatus is the aggregate state reported by a health check
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusDegraded HealthStatus = "degraded"
)

// ComponentCheck is the outcome of probing a single dependency
type ComponentCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// NewComponentCheck builds a check from a probe error
func NewComponentCheck(name string, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{Name: name, OK: false, Detail: err.Error()}
	}
	return ComponentCheck{Name: name, OK: true}
}

// HealthReport summarizes all component checks
type HealthReport struct {
	Status      HealthStatus     `json:"status"`
	Version     string           `json:"version"`
	Checks      []ComponentCheck `json:"checks"`
	VectorCount int              `json:"vector_db_count"`
	PDFCount    int              `json:"pdf_count"`
	UsePrimary  bool             `json:"use_primary"`
}

// Check returns the named check and whether it exists
func (r *HealthReport) Check(name string) (ComponentCheck, bool) {
	for _, c := range r.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentCheck{}, false
}

// IndexStats describes the stored corpus
type IndexStats struct {
	ChunkCount     int    `json:"chunk_count"`
	DocumentCount  int    `json:"document_count"`
	CacheEntries   int    `json:"cache_entries"`
	Dimension      int    `json:"dimension"`
	EmbeddingModel string `json:"embedding_model"`
}

// StatsConfig is the subset of the configuration reported by the stats endpoint
type StatsConfig struct {
	ChunkSize           int     `json:"chunk_size"`
	ChunkOverlap        int     `json:"chunk_overlap"`
	TopK                int     `json:"top_k"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	UsePrimary          bool    `json:"use_primary"`
	CacheEnabled        bool    `json:"cache_enabled"`
	OllamaModel         string  `json:"ollama_model"`
	ClaudeModel         string  `json:"claude_model"`
}

// Stats combines index statistics with the active configuration
type Stats struct {
	Index  IndexStats  `json:"vector_db"`
	Config StatsConfig `json:"config"`
}

// NewStatsConfig extracts the reported values from config
func NewStatsConfig(config *Config) StatsConfig {
	return StatsConfig{
		ChunkSize:           config.RAG.ChunkSize,
		ChunkOverlap:        config.RAG.ChunkOverlap,
		TopK:                config.RAG.TopK,
		ConfidenceThreshold: config.RAG.ConfidenceThreshold,
		UsePrimary:          config.RAG.UsePrimary,
		CacheEnabled:        config.RAG.CacheEnabled,
		OllamaModel:         config.Ollama.Model,
		ClaudeModel:         config.Claude.Model,
	}
}
