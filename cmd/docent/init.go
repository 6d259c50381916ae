// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/docent-dev/docent/internal/config"
	"github.com/docent-dev/docent/internal/provider"
	"github.com/docent-dev/docent/internal/secrets"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

// initWizardStep tracks which step of the wizard is active.
type initWizardStep int

const (
	stepProvider    initWizardStep = iota // select provider
	stepAPIKey                            // enter API key
	stepValidateKey                       // validating key (spinner)
	stepEmbedding                         // select embedding provider
	stepDone                              // wizard complete
	stepError                             // terminal error
)

// initResult holds the collected wizard configuration.
type initResult struct {
	Provider  string
	APIKey    string
	Embedding string
}

type (
	keyValidMsg   struct{}
	keyInvalidMsg struct{ err error }
)
type configWrittenMsg struct{ path string }

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

// defaultModels is the generation model written for each provider.
var defaultModels = map[string]string{
	"openai":    "openai/gpt-4o-mini",
	"anthropic": "anthropic/claude-haiku-4-5",
	"google":    "google/gemini-2.0-flash",
}

// embeddingDimensions is the vector size written for each embedder.
var embeddingDimensions = map[string]int{
	"openai": 1536,
	"google": 768,
	"hash":   256,
}

// probeKey checks that key works by generating a short reply with the
// provider's default model. Tests replace it.
var probeKey = func(ctx context.Context, name, key string) error {
	factory, ok := builtinProviderFactories[name]
	if !ok {
		return docerr.Errorf(docerr.CodeProviderNotFound, "unknown provider %q", name)
	}
	p, err := factory(ctx, config.ProviderConfig{APIKey: key})
	if err != nil {
		return err
	}
	reg := provider.NewRegistry()
	defer func() { _ = reg.Close() }()
	reg.Register(name, p)
	if err := reg.SetDefault(defaultModels[name]); err != nil {
		return err
	}
	_, err = reg.Generate(ctx, "Reply with the single word OK.")
	return err
}

// embeddingChoices lists the embedders usable with provider's key. The
// offline hash embedder is always offered last.
func embeddingChoices(providerName string) []string {
	if slices.Contains(config.EmbeddingProviders, providerName) && providerName != "hash" {
		return []string{providerName, "hash"}
	}
	return []string{"hash"}
}

// initModel is the bubbletea model for the init wizard.
type initModel struct {
	step           initWizardStep
	providerIdx    int
	embeddingIdx   int
	apiKeyInput    textinput.Model
	spinner        spinner.Model
	result         initResult
	validationErr  string
	configPath     string
	secretStore    secrets.Store
	errFinal       error
	forceOverwrite bool
}

func newInitModel(store secrets.Store) initModel {
	apiKey := textinput.New()
	apiKey.Placeholder = "paste API key here"
	apiKey.EchoMode = textinput.EchoPassword
	apiKey.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return initModel{
		step:        stepProvider,
		apiKeyInput: apiKey,
		spinner:     sp,
		secretStore: store,
	}
}

func (m initModel) Init() tea.Cmd {
	return nil
}

func (m initModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case keyValidMsg:
		m.step = stepEmbedding
		m.embeddingIdx = 0
		return m, nil

	case keyInvalidMsg:
		m.validationErr = msg.err.Error()
		m.step = stepAPIKey
		m.apiKeyInput.Focus()
		return m, nil

	case configWrittenMsg:
		m.step = stepDone
		m.configPath = msg.path
		return m, tea.Quit

	case error:
		m.step = stepError
		m.errFinal = msg
		return m, tea.Quit
	}

	if m.step == stepAPIKey {
		var cmd tea.Cmd
		m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m initModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.step {
	case stepProvider:
		return m.handleProviderKey(msg)
	case stepAPIKey:
		return m.handleAPIKeyInput(msg)
	case stepEmbedding:
		return m.handleEmbeddingKey(msg)
	}
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleProviderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.providerIdx > 0 {
			m.providerIdx--
		}
	case "down", "j":
		if m.providerIdx < len(config.GenerationProviders)-1 {
			m.providerIdx++
		}
	case "enter":
		m.result.Provider = config.GenerationProviders[m.providerIdx]
		m.step = stepAPIKey
		m.validationErr = ""
		m.apiKeyInput.SetValue("")
		m.apiKeyInput.Focus()
		return m, textinput.Blink
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) handleAPIKeyInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		key := strings.TrimSpace(m.apiKeyInput.Value())
		if key == "" {
			m.validationErr = "API key must not be empty"
			return m, nil
		}
		m.result.APIKey = key
		m.validationErr = ""
		m.step = stepValidateKey
		return m, tea.Batch(m.spinner.Tick, validateKeyCmd(m.result.Provider, key))
	case "ctrl+c":
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m initModel) handleEmbeddingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	choices := embeddingChoices(m.result.Provider)
	switch msg.String() {
	case "up", "k":
		if m.embeddingIdx > 0 {
			m.embeddingIdx--
		}
	case "down", "j":
		if m.embeddingIdx < len(choices)-1 {
			m.embeddingIdx++
		}
	case "enter":
		m.result.Embedding = choices[m.embeddingIdx]
		return m, writeConfigCmd(m.result, m.secretStore, m.forceOverwrite)
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m initModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("  Docent Setup  ") + "\n\n")

	switch m.step {
	case stepProvider:
		b.WriteString(promptStyle.Render("Step 1/2: Choose the model provider for answers") + "\n\n")
		writeChoices(&b, config.GenerationProviders, m.providerIdx)
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepAPIKey:
		b.WriteString(promptStyle.Render("Step 1/2: "+m.result.Provider+" API key") + "\n\n")
		b.WriteString(m.apiKeyInput.View() + "\n")
		if m.validationErr != "" {
			b.WriteString("\n" + errorStyle.Render("  "+m.validationErr) + "\n")
		}
		b.WriteString("\n" + dimStyle.Render("enter to continue  ctrl+c to quit"))

	case stepValidateKey:
		b.WriteString(m.spinner.View() + " Checking " + m.result.Provider + " API key…\n")

	case stepEmbedding:
		b.WriteString(promptStyle.Render("Step 2/2: Choose how documents are embedded") + "\n\n")
		writeChoices(&b, embeddingChoices(m.result.Provider), m.embeddingIdx)
		b.WriteString("\n" + dimStyle.Render("hash works offline but only matches shared words"))
		b.WriteString("\n" + dimStyle.Render("↑/↓ to navigate  enter to select  q to quit"))

	case stepDone:
		b.WriteString(successStyle.Render("  Setup complete!  ") + "\n\n")
		if m.configPath != "" {
			b.WriteString(dimStyle.Render("Config written to: "+m.configPath) + "\n\n")
		}
		b.WriteString("Run " + promptStyle.Render("docent ingest <bundle>") + " to add a document, then ")
		b.WriteString(promptStyle.Render("docent ask <doc-id> <question>") + ".\n")

	case stepError:
		b.WriteString(errorStyle.Render("Setup failed: "+m.errFinal.Error()) + "\n")
	}

	return boxStyle.Render(b.String())
}

func writeChoices(b *strings.Builder, choices []string, selected int) {
	for i, c := range choices {
		if i == selected {
			b.WriteString(selectedStyle.Render("  > "+c) + "\n")
		} else {
			b.WriteString(dimStyle.Render("    "+c) + "\n")
		}
	}
}

func validateKeyCmd(providerName, key string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := probeKey(ctx, providerName, key); err != nil {
			return keyInvalidMsg{err: err}
		}
		return keyValidMsg{}
	}
}

func writeConfigCmd(result initResult, store secrets.Store, forceOverwrite bool) tea.Cmd {
	return func() tea.Msg {
		path, err := storeSecretAndWriteConfig(result, store, forceOverwrite)
		if err != nil {
			return err
		}
		return configWrittenMsg{path: path}
	}
}

type generatedConfig struct {
	Storage struct {
		Backend string `yaml:"backend"`
	} `yaml:"storage"`
	Embedding struct {
		Provider   string `yaml:"provider"`
		Dimensions int    `yaml:"dimensions"`
	} `yaml:"embedding"`
	Generation struct {
		Default string `yaml:"default"`
	} `yaml:"generation"`
	Providers map[string]generatedProvider `yaml:"providers"`
}

type generatedProvider struct {
	APIKey string `yaml:"api_key"`
}

// GenerateConfigYAML renders docent.yaml for the wizard result. The API key
// is referenced through a keyring URI and never written in plain text.
func GenerateConfigYAML(result initResult) ([]byte, error) {
	var cfg generatedConfig
	cfg.Storage.Backend = "sqlite"
	cfg.Embedding.Provider = result.Embedding
	cfg.Embedding.Dimensions = embeddingDimensions[result.Embedding]
	cfg.Generation.Default = defaultModels[result.Provider]
	cfg.Providers = map[string]generatedProvider{
		result.Provider: {APIKey: secrets.ProviderURI(result.Provider)},
	}

	body, err := yaml.Marshal(&cfg)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeCLISetupFailure, "rendering config")
	}
	header := "# Generated by docent init. See `docent --help` for the remaining keys.\n\n"
	return append([]byte(header), body...), nil
}

// configPathForWrite returns where init writes docent.yaml. Tests override it.
var configPathForWrite = config.DefaultConfigPath

// storeSecretAndWriteConfig saves the API key to the keyring and writes the
// config file. An edited config is only replaced when forceOverwrite is set;
// the untouched bootstrap default always is.
func storeSecretAndWriteConfig(result initResult, store secrets.Store, forceOverwrite bool) (string, error) {
	cfgPath, err := configPathForWrite()
	if err != nil {
		return "", err
	}
	if !forceOverwrite {
		if existing, readErr := os.ReadFile(cfgPath); readErr == nil && !bytes.Equal(existing, config.DefaultConfigYAML) {
			return "", docerr.Errorf(docerr.CodeCLISetupFailure,
				"config file already exists at %s; use --force to overwrite", cfgPath)
		}
	}

	if err := store.Set(secrets.Service, secrets.ProviderKey(result.Provider), result.APIKey); err != nil {
		return "", err
	}

	data, err := GenerateConfigYAML(result)
	if err != nil {
		return "", err
	}
	if _, err := config.WriteConfig(cfgPath, data, true); err != nil {
		return "", err
	}
	return cfgPath, nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Interactive setup wizard",
		Long: `Run an interactive wizard that chooses the answer model provider, checks its
API key and picks an embedder.

The key is stored in the OS keyring and docent.yaml references it through a
keyring:// URI, so no secret is written in plain text.`,
		RunE: runInit,
	}

	cmd.Flags().Bool("force", false, "overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !isTerminal(f) {
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(),
			"docent init requires an interactive terminal.\n"+
				"To configure docent non-interactively, edit ~/.config/docent/docent.yaml and use `docent secret set`.")
		return docerr.New(docerr.CodeCLISetupFailure, "docent init: not an interactive terminal")
	}

	forceOverwrite, _ := cmd.Flags().GetBool("force")

	m := newInitModel(secretStoreFactory())
	m.forceOverwrite = forceOverwrite

	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	if err != nil {
		return docerr.Wrap(err, docerr.CodeCLISetupFailure, "init wizard")
	}
	fm, ok := finalModel.(initModel)
	if !ok {
		return docerr.New(docerr.CodeCLISetupFailure, "unexpected model type after wizard")
	}
	if fm.errFinal != nil {
		return docerr.Wrap(fm.errFinal, docerr.CodeCLISetupFailure, "init failed")
	}
	if fm.step == stepDone {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Config written to %s\n", fm.configPath)
	}
	return nil
}

// isTerminal reports whether f is a terminal file descriptor.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
