package config

// Profile holds launch settings for a single named process.
// This allows running the API server, background workers, or helper scripts
// from one configuration file with per-process overrides.
type Profile struct {
	// Command is the argv to run. When empty, the default uvicorn command
	// is built from the resolved interpreter and the configured host/port.
	Command []string `yaml:"command,omitempty"`

	// Env are extra environment variables for the child process.
	Env map[string]string `yaml:"env,omitempty"`

	// Port overrides the global server port for this profile.
	// If zero, the global port is used.
	Port int `yaml:"port,omitempty"`

	// Watch overrides the watched directories for this profile.
	Watch []string `yaml:"watch,omitempty"`

	// Ignore are glob patterns excluded from watching, in addition to the
	// built-in exclusions (data dir, venv, hidden directories).
	Ignore []string `yaml:"ignore,omitempty"`

	// Extensions overrides the file extensions that trigger a reload.
	Extensions []string `yaml:"extensions,omitempty"`

	// Reload overrides the global reload setting for this profile.
	// Nil means inherit.
	Reload *bool `yaml:"reload,omitempty"`
}

// File represents the structure of the .devserve.yaml configuration file.
type File struct {
	// Profiles maps profile names to their launch settings.
	Profiles map[string]Profile `yaml:"profiles,omitempty"`

	// Defaults contains settings applied to all profiles unless overridden
	// in the profile itself.
	Defaults Profile `yaml:"defaults,omitempty"`
}

// GetProfile returns the configuration for a named profile.
// It merges the profile's settings over the defaults. The boolean reports
// whether the profile was explicitly defined; callers decide whether an
// undefined profile is an error (it is for anything but the default).
func (f *File) GetProfile(name string) (Profile, bool) {
	result := f.Defaults

	// The struct copy still aliases the defaults env map. Resolved profiles
	// get their own map so overlays never leak into the defaults or into
	// profiles resolved concurrently.
	if len(f.Defaults.Env) > 0 {
		result.Env = make(map[string]string, len(f.Defaults.Env))
		for k, v := range f.Defaults.Env {
			result.Env[k] = v
		}
	}

	p, ok := f.Profiles[name]
	if !ok {
		return result, false
	}

	// Override with profile-specific values
	if len(p.Command) > 0 {
		result.Command = p.Command
	}
	if p.Port != 0 {
		result.Port = p.Port
	}
	if len(p.Watch) > 0 {
		result.Watch = p.Watch
	}
	if len(p.Ignore) > 0 {
		result.Ignore = p.Ignore
	}
	if len(p.Extensions) > 0 {
		result.Extensions = p.Extensions
	}
	if p.Reload != nil {
		result.Reload = p.Reload
	}
	if len(p.Env) > 0 {
		if result.Env == nil {
			result.Env = make(map[string]string, len(p.Env))
		}
		for k, v := range p.Env {
			result.Env[k] = v
		}
	}

	return result, true
}

// Apply folds a profile's settings into the Config.
// Callers apply the profile over the built-in defaults and before
// environment and flag overrides, giving the precedence
// defaults < file < env < flags.
func (c *Config) Apply(p Profile) {
	if len(p.Command) > 0 {
		c.Command = p.Command
	}
	if p.Port != 0 {
		c.Port = p.Port
	}
	if len(p.Watch) > 0 {
		c.WatchPaths = p.Watch
	}
	if len(p.Ignore) > 0 {
		c.IgnorePatterns = p.Ignore
	}
	if len(p.Extensions) > 0 {
		c.WatchExtensions = p.Extensions
	}
	if p.Reload != nil {
		c.Reload = *p.Reload
	}
}
