package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"poetry-tutor/internal/app"
	"poetry-tutor/internal/domain"
	"poetry-tutor/internal/service"
	"poetry-tutor/internal/speech"
)

var chatFlags struct {
	chatID string
	userID string
	model  string
	voice  string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactivo sobre el pipeline de streaming",
	Long: `Abre un chat en la terminal. Escribe "salir" para terminar.
Sin --chat se crea un chat nuevo para el usuario.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if strings.TrimSpace(chatFlags.userID) == "" {
			return errors.New("--user is required")
		}
		return withApp(cmd.Context(), func(a *app.App) error {
			return runChat(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout())
		})
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.chatID, "chat", "", "id del chat")
	chatCmd.Flags().StringVar(&chatFlags.userID, "user", "", "id del usuario dueño del chat")
	chatCmd.Flags().StringVar(&chatFlags.model, "model", "", "modelo (por defecto DEFAULT_MODEL)")
	chatCmd.Flags().StringVar(&chatFlags.voice, "voice", "", "voz TTS")
}

// terminalEvents imprime los fragmentos a medida que llegan.
type terminalEvents struct {
	out io.Writer
}

func (t terminalEvents) Fragment(_, text string) error {
	_, err := fmt.Fprint(t.out, text)
	return err
}

func (t terminalEvents) Audio(_ string, a speech.AudioArtifact) error {
	_, err := fmt.Fprintf(t.out, "\n[audio] %s (%d bytes)\n", a.URL, a.FileSize)
	return err
}

func (t terminalEvents) AudioError(_, reason string) error {
	_, err := fmt.Fprintf(t.out, "\n[audio] %s\n", reason)
	return err
}

func runChat(ctx context.Context, a *app.App, in io.Reader, out io.Writer) error {
	actor := service.Actor{UserID: chatFlags.userID, Role: domain.RoleUser}
	chatID := chatFlags.chatID
	if chatID == "" {
		chat, err := a.Chats.Create(ctx, actor, "")
		if err != nil {
			return fmt.Errorf("create chat: %w", err)
		}
		chatID = chat.ID
		fmt.Fprintf(out, "chat %s creado\n", chatID)
	}

	reader := bufio.NewReader(in)
	events := terminalEvents{out: out}
	fmt.Fprintln(out, "---- escribe 'salir' para terminar ----")
	for {
		fmt.Fprint(out, "Tú > ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read input: %w", err)
		}
		text := strings.TrimSpace(line)
		if text == "salir" || (text == "" && errors.Is(err, io.EOF)) {
			return nil
		}
		if text == "" {
			continue
		}

		fmt.Fprint(out, "Tutor > ")
		streamErr := a.Pipeline.Stream(ctx, service.ProcessInput{
			Actor:     actor,
			ChatID:    chatID,
			Content:   text,
			ModelName: chatFlags.model,
			VoiceID:   chatFlags.voice,
		}, events)
		if streamErr != nil {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", streamErr)
		}
		fmt.Fprintln(out)
		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}
