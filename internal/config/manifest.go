package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest describes one deployable bot: where it lives on the target, which
// files make it up, how its dependencies are installed and how systemd should
// run it. Every field has a default matching the production bot, so a missing
// or empty manifest file deploys the standard layout.
type Manifest struct {
	RemoteDir string     `yaml:"remote_dir" validate:"required,startswith=/"`
	LogFile   string     `yaml:"log_file" validate:"required"`
	Service   ServiceDef `yaml:"service"`
	Payload   PayloadDef `yaml:"payload"`
	Python    PythonDef  `yaml:"python"`
	Health    HealthDef  `yaml:"health"`
}

// ServiceDef configures the systemd unit installed on the target. A
// restart_sec of zero is indistinguishable from unset and takes the default.
type ServiceDef struct {
	Name        string            `yaml:"name" validate:"required,unitname"`
	Description string            `yaml:"description" validate:"required"`
	RestartSec  int               `yaml:"restart_sec" validate:"gt=0"`
	Environment map[string]string `yaml:"environment"`
}

// PayloadDef lists the files shipped to the target. Files are resolved
// relative to the manifest's directory and every one of them must exist
// locally. SecretsFile is shipped only when present.
type PayloadDef struct {
	Files       []string `yaml:"files" validate:"required,min=1,dive,required"`
	SecretsFile string   `yaml:"secrets_file"`
	Entrypoint  string   `yaml:"entrypoint" validate:"required"`
}

// PythonDef configures the dependency environment under RemoteDir.
type PythonDef struct {
	VenvDir          string   `yaml:"venv_dir" validate:"required"`
	Requirements     string   `yaml:"requirements" validate:"required"`
	ExpectedPackages []string `yaml:"expected_packages"`
}

// HealthDef configures the post-restart health check. Zero values are
// indistinguishable from unset and take the defaults, so a zero-second
// startup delay cannot be configured through the manifest.
type HealthDef struct {
	StartupDelaySecs int `yaml:"startup_delay_secs" validate:"gte=0"`
	JournalLines     int `yaml:"journal_lines" validate:"gt=0"`
}

var validate = validator.New()

var unitNameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

func init() {
	validate.RegisterValidation("unitname", func(fl validator.FieldLevel) bool {
		return unitNameRegex.MatchString(fl.Field().String())
	})
}

// Default returns the manifest for the standard bot layout.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load reads a manifest YAML file, fills in defaults and validates it.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	m.applyDefaults()
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("validate manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if m.RemoteDir == "" {
		m.RemoteDir = "/home/ubuntu/arbitrage-bot"
	}
	if m.LogFile == "" {
		m.LogFile = "arbitrage.log"
	}
	if m.Service.Name == "" {
		m.Service.Name = "arb-bot"
	}
	if m.Service.Description == "" {
		m.Service.Description = "Binance maker-taker arbitrage bot"
	}
	if m.Service.RestartSec == 0 {
		m.Service.RestartSec = 5
	}
	if len(m.Payload.Files) == 0 {
		m.Payload.Files = defaultPayloadFiles()
	}
	if m.Payload.SecretsFile == "" {
		m.Payload.SecretsFile = ".env"
	}
	if m.Payload.Entrypoint == "" {
		m.Payload.Entrypoint = "run.py"
	}
	if m.Python.VenvDir == "" {
		m.Python.VenvDir = ".venv"
	}
	if m.Python.Requirements == "" {
		m.Python.Requirements = "requirements.txt"
	}
	if len(m.Python.ExpectedPackages) == 0 {
		m.Python.ExpectedPackages = []string{"binance", "websockets", "dotenv", "yaml", "requests"}
	}
	if m.Health.StartupDelaySecs == 0 {
		m.Health.StartupDelaySecs = 5
	}
	if m.Health.JournalLines == 0 {
		m.Health.JournalLines = 50
	}
}

func defaultPayloadFiles() []string {
	return []string{
		"run.py",
		"arbitrage_bot.py",
		"config.py",
		"control_server.py",
		"cross_exchange_adapter.py",
		"binance_adapter.py",
		"aster_adapter.py",
		"aster_ws_manager.py",
		"bitget_adapter.py",
		"bitget_ws_manager.py",
		"gate_adapter.py",
		"gate_ws_manager.py",
		"ws_manager.py",
		"fill_handler.py",
		"trade_logger.py",
		"feishu_notifier.py",
		"requirements.txt",
		"config.yaml",
	}
}
