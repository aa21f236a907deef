package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xxwfufu/devsync/internal/archive"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "View documents embedded in a sync package",
	RunE: func(cmd *cobra.Command, args []string) error {
		pkgPath, _ := cmd.Flags().GetString("input")
		if pkgPath == "" {
			return fmt.Errorf("package path must not be empty")
		}
		name, _ := cmd.Flags().GetString("view")

		content, err := readPackageDocument(pkgPath, name)
		if err != nil {
			return err
		}

		p := tea.NewProgram(
			pagerModel{title: fmt.Sprintf("%s · %s", filepath.Base(pkgPath), name), content: string(content)},
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		)

		if _, err := p.Run(); err != nil {
			cmd.SilenceUsage = true
			return err
		}
		return nil
	},
}

var inspectExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy an embedded document out of a sync package",
	RunE: func(cmd *cobra.Command, args []string) error {
		pkgPath, _ := cmd.Flags().GetString("input")
		name, _ := cmd.Flags().GetString("document")
		outputPath, _ := cmd.Flags().GetString("output")
		if outputPath == "" {
			outputPath = filepath.Base(name)
		}

		data, err := readPackageDocument(pkgPath, name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return fmt.Errorf("writing document (%s): %w", outputPath, err)
		}

		fmt.Printf("document exported to %s\n", outputPath)
		return nil
	},
}

var inspectImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace an embedded document inside a sync package",
	RunE: func(cmd *cobra.Command, args []string) error {
		pkgPath, _ := cmd.Flags().GetString("input")
		name, _ := cmd.Flags().GetString("document")
		fromPath, _ := cmd.Flags().GetString("from")
		force, _ := cmd.Flags().GetBool("force")

		data, err := os.ReadFile(fromPath)
		if err != nil {
			return fmt.Errorf("reading document (%s): %w", fromPath, err)
		}

		if !force {
			switch ext := filepath.Ext(fromPath); ext {
			case ".yaml", ".yml":
				var doc map[string]any
				if err := yaml.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("document is not valid YAML: %w", err)
				}
			case ".json":
				var doc map[string]any
				if err := json.Unmarshal(data, &doc); err != nil {
					return fmt.Errorf("document is not valid JSON: %w", err)
				}
			}
		}

		if err := archive.ReplaceEntry(pkgPath, name, data); err != nil {
			return fmt.Errorf("updating package: %w", err)
		}

		fmt.Printf("document imported into %s\n", pkgPath)
		return nil
	},
}

func init() {
	inspectCmd.PersistentFlags().StringP("input", "i", "", "sync package path")
	inspectCmd.Flags().StringP("view", "v", archive.ManifestName,
		fmt.Sprintf("document to view (%s, %s, %s)", archive.ManifestName, archive.MetadataName, archive.ConfigName))

	inspectExportCmd.Flags().StringP("document", "d", archive.ConfigName, "embedded document to export")
	inspectExportCmd.Flags().StringP("output", "o", "", "output path (default: the document name)")

	inspectImportCmd.Flags().StringP("document", "d", archive.ConfigName, "embedded document to replace")
	inspectImportCmd.Flags().StringP("from", "f", "", "file to import")
	inspectImportCmd.Flags().Bool("force", false, "skip format validation")
	inspectImportCmd.MarkFlagRequired("from")

	inspectCmd.AddCommand(inspectExportCmd)
	inspectCmd.AddCommand(inspectImportCmd)
	rootCmd.AddCommand(inspectCmd)
}

func readPackageDocument(pkgPath, name string) ([]byte, error) {
	password := ""
	if archive.IsEncrypted(pkgPath) {
		var err error
		password, err = readPassword(false)
		if err != nil {
			return nil, err
		}
	}

	pkg, err := archive.Open(pkgPath, password)
	if err != nil {
		return nil, err
	}
	defer pkg.Close()

	return pkg.ReadEntry(name)
}

var (
	pagerTitleStyle = func() lipgloss.Style {
		b := lipgloss.RoundedBorder()
		b.Right = "├"
		return lipgloss.NewStyle().BorderStyle(b).Padding(0, 1)
	}()

	pagerInfoStyle = func() lipgloss.Style {
		b := lipgloss.RoundedBorder()
		b.Left = "┤"
		return pagerTitleStyle.BorderStyle(b)
	}()
)

type pagerModel struct {
	title    string
	content  string
	ready    bool
	viewport viewport.Model
}

func (m pagerModel) Init() tea.Cmd {
	return nil
}

func (m pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if k := msg.String(); k == "ctrl+c" || k == "q" || k == "esc" {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		verticalMarginHeight := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMarginHeight)
			m.viewport.YPosition = headerHeight
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMarginHeight
		}
	}

	// Scrolling is handled by the viewport itself.
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m pagerModel) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.headerView(), m.viewport.View(), m.footerView())
}

func (m pagerModel) headerView() string {
	title := pagerTitleStyle.Render(m.title)
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title)))
	return lipgloss.JoinHorizontal(lipgloss.Center, title, line)
}

func (m pagerModel) footerView() string {
	info := pagerInfoStyle.Render(fmt.Sprintf("%3.f%%", m.viewport.ScrollPercent()*100))
	line := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(info)))
	return lipgloss.JoinHorizontal(lipgloss.Center, line, info)
}
