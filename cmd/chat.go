package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/heartmatch/heartmatch/internal/logger"
	"github.com/heartmatch/heartmatch/internal/support"
)

const (
	roleLabelChild        = "Child"
	roleLabelFamily       = "Family"
	roleLabelSocialWorker = "Social worker"
	roleLabelGeneral      = "General"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the support assistant",
	Long: "Start an interactive support conversation. The assistant adapts its tone " +
		"to who is asking: a child, a prospective family, or a social worker.",
	Run: func(cmd *cobra.Command, _ []string) {
		chat(cmd)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("role", "r", "", "who is talking: child, family, social_worker or general. Prompted when unset.")
	chatCmd.Flags().StringP("transcript-file", "t", "", "write the session transcript to this file on exit")
}

func chat(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	role, err := selectRole(cmd)
	if err != nil {
		logger.Fatal("selecting a role", zap.Error(err))
	}

	generator, err := newGenerator(ctx, config, logger)
	if err != nil {
		logger.Fatal("building the model gateway", zap.Error(err))
	}

	sessionCfg := support.Config{Models: config.models()}
	if config.Support != nil {
		if len(config.Support.Models) > 0 {
			sessionCfg.Models = config.Support.Models
		}
		sessionCfg.Keywords = config.Support.CrisisKeywords
	}

	session := support.NewSession(generator, sessionCfg, logger)
	defer session.Close()

	logger.Info("chat session started",
		zap.String("session_id", session.ID()),
		zap.String("role", string(role)),
	)

	fmt.Println("Type your message and press ENTER. Type 'exit' to end the conversation.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "exit" || text == "quit" {
			break
		}

		reply, err := session.Submit(ctx, text, role)
		if err != nil {
			logger.Fatal("submitting a message", zap.Error(err))
		}

		fmt.Printf("\n%s\n\n", reply.Text)
	}
	if err := scanner.Err(); err != nil {
		logger.Fatal("reading input", zap.Error(err))
	}

	if transcriptFile := cmd.Flag("transcript-file").Value.String(); transcriptFile != "" {
		if err := exportTranscript(session, transcriptFile); err != nil {
			logger.Fatal("exporting transcript", zap.Error(err))
		}
		logger.Info("transcript exported", zap.String("filename", transcriptFile))
	}

	logger.Info("chat session ended", zap.String("session_id", session.ID()))
}

func selectRole(cmd *cobra.Command) (support.Role, error) {
	if flagged := cmd.Flag("role").Value.String(); flagged != "" {
		return support.ParseRole(flagged), nil
	}

	rolePrompt := promptui.Select{
		Label: "Who is talking?",
		Items: []string{roleLabelChild, roleLabelFamily, roleLabelSocialWorker, roleLabelGeneral},
	}

	_, selected, err := rolePrompt.Run()
	if err != nil {
		return support.RoleGeneral, err
	}

	switch selected {
	case roleLabelChild:
		return support.RoleChild, nil
	case roleLabelFamily:
		return support.RoleFamily, nil
	case roleLabelSocialWorker:
		return support.RoleSocialWorker, nil
	default:
		return support.RoleGeneral, nil
	}
}

type transcript struct {
	SessionID  string         `json:"session_id"`
	ExportedAt time.Time      `json:"exported_at"`
	Turns      []support.Turn `json:"turns"`
}

// exportTranscript must run before Close discards the turn history.
func exportTranscript(session *support.Session, path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	return enc.Encode(transcript{
		SessionID:  session.ID(),
		ExportedAt: time.Now().UTC(),
		Turns:      session.Turns(),
	})
}
