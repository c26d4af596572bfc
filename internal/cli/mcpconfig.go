package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/cobra"
)

// MCPClientConfig is the server registry file read by desktop MCP clients.
type MCPClientConfig struct {
	MCPServers map[string]MCPServerEntry `json:"mcpServers"`
}

// MCPServerEntry launches one stdio MCP server.
type MCPServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// DefaultClientConfigPath returns where the desktop client keeps its server
// registry on goos.
func DefaultClientConfigPath(goos, home string, getenv func(string) string) (string, error) {
	var dir string
	switch goos {
	case "darwin":
		dir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			dir = filepath.Join(xdg, "Claude")
		} else {
			dir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			return "", errors.New("APPDATA environment variable not set")
		}
		dir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
	return filepath.Join(dir, "claude_desktop_config.json"), nil
}

// LoadMCPClientConfig reads the registry. A missing file is an empty one.
func LoadMCPClientConfig(path string) (*MCPClientConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &MCPClientConfig{MCPServers: map[string]MCPServerEntry{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read client config: %w", err)
	}

	var cfg MCPClientConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = map[string]MCPServerEntry{}
	}
	return &cfg, nil
}

// Save writes the registry, creating its directory.
func (c *MCPClientConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create client config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func newMCPConfigCommand() *cobra.Command {
	var (
		binary     string
		name       string
		configPath string
		env        map[string]string
		write      bool
	)

	cmd := &cobra.Command{
		Use:   "mcp-config",
		Short: "Register the screening MCP server with a desktop MCP client",
		Long: `Print, or with --write merge, the client registry entry that launches
mcp-server-lite over stdio. Other servers in the registry are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if binary == "" {
				return errors.New("--binary is required")
			}
			abs, err := filepath.Abs(binary)
			if err != nil {
				return fmt.Errorf("resolve binary path: %w", err)
			}
			entry := MCPServerEntry{Command: abs, Env: env}

			if !write {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(MCPClientConfig{MCPServers: map[string]MCPServerEntry{name: entry}})
			}

			if configPath == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("get home directory: %w", err)
				}
				if configPath, err = DefaultClientConfigPath(runtime.GOOS, home, os.Getenv); err != nil {
					return err
				}
			}
			cfg, err := LoadMCPClientConfig(configPath)
			if err != nil {
				return err
			}
			cfg.MCPServers[name] = entry
			if err := cfg.Save(configPath); err != nil {
				return err
			}

			names := make([]string, 0, len(cfg.MCPServers))
			for n := range cfg.MCPServers {
				names = append(names, n)
			}
			sort.Strings(names)
			fmt.Fprintf(cmd.OutOrStdout(), "registered %q in %s (servers: %v)\n", name, configPath, names)
			return nil
		},
	}
	cmd.Flags().StringVar(&binary, "binary", "", "path to the mcp-server-lite binary")
	cmd.Flags().StringVar(&name, "name", "screening", "server name in the client registry")
	cmd.Flags().StringVar(&configPath, "client-config", "", "client registry file (default: the desktop client's location)")
	cmd.Flags().StringToStringVar(&env, "env", nil, "environment for the server, e.g. --env SCREENING_TIMEZONE=UTC")
	cmd.Flags().BoolVar(&write, "write", false, "merge the entry into the client registry instead of printing it")
	return cmd
}
