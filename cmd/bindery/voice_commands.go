package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"bindery/internal/ipc"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var refresh bool
	var langFilter string
	var showPreview bool
	voicesCmd := &cobra.Command{
		Use:   "voices",
		Short: "List text-to-speech voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.VoiceList(refresh)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				cols := textColumns("Engine", "Voice", "Language", "Gender")
				if showPreview {
					cols = append(cols, column{title: "Preview", wide: true})
				}
				rows := make([][]string, 0, len(resp.Voices))
				for _, voice := range resp.Voices {
					if langFilter != "" && !strings.HasPrefix(voice.Lang, langFilter) {
						continue
					}
					row := []string{
						voice.Engine,
						voice.Name,
						languageName(voice.Lang),
						voice.Gender,
					}
					if showPreview {
						row = append(row, voice.Preview)
					}
					rows = append(rows, row)
				}
				if len(rows) == 0 {
					fmt.Fprintln(stdout, "No voices available")
					return nil
				}
				fmt.Fprintln(stdout, renderTable(cols, rows))
				return nil
			})
		},
	}
	voicesCmd.Flags().BoolVar(&refresh, "refresh", false, "Force a voices refresh against the engine")
	voicesCmd.Flags().StringVar(&langFilter, "lang", "", "Filter by language tag prefix")
	voicesCmd.Flags().BoolVar(&showPreview, "preview", false, "Include voice preview URLs")
	return voicesCmd
}

func newTTSCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tts",
		Short: "Show per-provider TTS connection state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.TTSStatus()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Engines) == 0 {
					fmt.Fprintln(stdout, "No TTS providers tracked")
					return nil
				}
				colorize := shouldColorize(stdout)
				for _, state := range resp.Engines {
					name := state.Name
					if name == "" {
						name = state.Key
					}
					fmt.Fprintln(stdout, renderStatusLine(name, ttsStatusKind(state.Status), state.Message, colorize))
				}
				return nil
			})
		},
	}
}

func ttsStatusKind(status string) statusKind {
	switch status {
	case "available":
		return statusOK
	case "connecting", "disconnecting":
		return statusWarn
	case "disabled":
		return statusInfo
	default:
		return statusError
	}
}

// languageName renders a BCP 47 tag as an English display name, falling back
// to the raw tag for anything unparsable.
func languageName(tag string) string {
	if strings.TrimSpace(tag) == "" {
		return ""
	}
	parsed, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	name := display.English.Languages().Name(parsed)
	if name == "" {
		return tag
	}
	return name
}
