package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9998
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 2 * time.Minute
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 100 << 20
	}
	if cfg.Extract.Handler == "" {
		cfg.Extract.Handler = "xml"
	}
	if cfg.Extract.MaxEmbeddedResources == nil {
		n := -1
		cfg.Extract.MaxEmbeddedResources = &n
	}
	if cfg.Extract.WriteLimit == nil {
		n := -1
		cfg.Extract.WriteLimit = &n
	}
	if cfg.Extract.StopOnWriteLimit == nil {
		t := true
		cfg.Extract.StopOnWriteLimit = &t
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".csv", ".html", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods", ".zip"}
	}
	if cfg.Watch.OutputDir == "" {
		cfg.Watch.OutputDir = "./rmeta-out"
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
