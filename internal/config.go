package internal

import (
	"flag"
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

const (
	// DefaultListenAddr is where the HTTP server listens when no address is
	// configured. Loopback only; exposing the store publicly is a deployment
	// decision.
	DefaultListenAddr = "127.0.0.1:8080"

	// DefaultBranch is the branch served by the /latest endpoint.
	DefaultBranch = "main"

	// DefaultExtension marks which files in the tree are documents.
	DefaultExtension = ".json"
)

type Config struct {
	Remote     string
	Checkout   string
	Branch     string
	ListenAddr string
	Extension  string
	GitUser    GitUserConfig
}

type GitUserConfig struct {
	Name  string
	Email string
}

// ParseConfig builds the server configuration from command-line arguments and
// environment variables. An optional INI file named by --config supplies
// values under [remote], [server], [author], and [documents]; explicit flags
// override the file, and the file overrides environment defaults
// (GITDOCS_REMOTE, GITDOCS_CHECKOUT, GITDOCS_LISTEN).
func ParseConfig(args, environment []string) (Config, error) {
	lookup := make(map[string]string)
	for _, variable := range environment {
		key, value, ok := strings.Cut(variable, "=")
		if ok {
			lookup[key] = value
		}
	}

	config := Config{
		Remote:     lookup["GITDOCS_REMOTE"],
		Checkout:   lookup["GITDOCS_CHECKOUT"],
		ListenAddr: DefaultListenAddr,
		Branch:     DefaultBranch,
		Extension:  DefaultExtension,
		GitUser: GitUserConfig{
			Name:  "Gitdocs",
			Email: "gitdocs@example.com",
		},
	}
	if value, ok := lookup["GITDOCS_LISTEN"]; ok {
		config.ListenAddr = value
	}

	var (
		configPath string
		remote     string
		checkout   string
		branch     string
		listenAddr string
		extension  string
		userName   string
		userEmail  string
	)

	fs := flag.NewFlagSet("gitdocs", flag.ContinueOnError)
	fs.StringVar(&configPath, "config", "", "INI configuration file")
	fs.StringVar(&remote, "remote", "", "git remote URL to serve")
	fs.StringVar(&checkout, "checkout", "", "local checkout directory")
	fs.StringVar(&branch, "branch", "", "default branch for /latest")
	fs.StringVar(&listenAddr, "listen", "", "HTTP listen address")
	fs.StringVar(&extension, "extension", "", "document file extension")
	fs.StringVar(&userName, "git-user-name", "", "author name for write commits")
	fs.StringVar(&userEmail, "git-user-email", "", "author email for write commits")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if configPath != "" {
		file, err := ini.Load(configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to load config file %q: %w", configPath, err)
		}

		apply := func(dst *string, section, key string) {
			if value := file.Section(section).Key(key).String(); value != "" {
				*dst = value
			}
		}
		apply(&config.Remote, "remote", "url")
		apply(&config.Branch, "remote", "branch")
		apply(&config.Checkout, "server", "checkout")
		apply(&config.ListenAddr, "server", "listen")
		apply(&config.Extension, "documents", "extension")
		apply(&config.GitUser.Name, "author", "name")
		apply(&config.GitUser.Email, "author", "email")
	}

	// Flags that were set explicitly win over both the file and environment.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "remote":
			config.Remote = remote
		case "checkout":
			config.Checkout = checkout
		case "branch":
			config.Branch = branch
		case "listen":
			config.ListenAddr = listenAddr
		case "extension":
			config.Extension = extension
		case "git-user-name":
			config.GitUser.Name = userName
		case "git-user-email":
			config.GitUser.Email = userEmail
		}
	})

	if config.Remote == "" {
		return Config{}, fmt.Errorf("a remote URL is required: pass --remote, set GITDOCS_REMOTE, or configure [remote] url")
	}
	if config.Checkout == "" {
		return Config{}, fmt.Errorf("a checkout directory is required: pass --checkout, set GITDOCS_CHECKOUT, or configure [server] checkout")
	}
	if !strings.HasPrefix(config.Extension, ".") {
		config.Extension = "." + config.Extension
	}

	return config, nil
}
