package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"scribe/auth"
	"scribe/bot"
	"scribe/session"
	"scribe/socket"
	"scribe/stt"
	"scribe/tenant"
)

var logger *log.Logger

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(discordCmd)
	rootCmd.AddCommand(tenantsCmd)

	rootCmd.PersistentFlags().String("discord-token", "", "Discord bot token")
	rootCmd.PersistentFlags().
		String("deepgram-api-key", "", "Deepgram API key")
	rootCmd.PersistentFlags().
		String("database-url", "", "Postgres connection string")
	rootCmd.PersistentFlags().Int("socket-port", 3000, "Subscriber socket port")
	rootCmd.PersistentFlags().String("default-prefix", "!", "Default command prefix")
	rootCmd.PersistentFlags().
		Int("render-interval-ms", 1000, "Minimum milliseconds between transcript renders")

	viper.BindPFlag(
		"discord_token",
		rootCmd.PersistentFlags().Lookup("discord-token"),
	)
	viper.BindPFlag(
		"deepgram_api_key",
		rootCmd.PersistentFlags().Lookup("deepgram-api-key"),
	)
	viper.BindPFlag(
		"database_url",
		rootCmd.PersistentFlags().Lookup("database-url"),
	)
	viper.BindPFlag(
		"socket_port",
		rootCmd.PersistentFlags().Lookup("socket-port"),
	)
	viper.BindPFlag(
		"default_prefix",
		rootCmd.PersistentFlags().Lookup("default-prefix"),
	)
	viper.BindPFlag(
		"render_interval_ms",
		rootCmd.PersistentFlags().Lookup("render-interval-ms"),
	)
}

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Printf("Error reading config file: %s\n", err)
		}
	}

	logger = log.New(os.Stdout)
}

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Scribe is a Discord bot for live voice channel transcription",
	Long:  `Scribe transcribes voice channels into a live transcript message and streams the same transcript to authenticated API subscribers.`,
}

var discordCmd = &cobra.Command{
	Use:   "discord",
	Short: "Start the Discord bot and the subscriber socket server",
	Run:   runDiscord,
}

var tenantsCmd = &cobra.Command{
	Use:   "tenants",
	Short: "List configured tenants",
	Run:   runListTenants,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runDiscord(cmd *cobra.Command, args []string) {
	mainLogger, chatLogger, hearLogger, sockLogger := createLoggers()

	discordToken := viper.GetString("discord_token")
	if discordToken == "" {
		mainLogger.Fatal("missing DISCORD_TOKEN or --discord-token=")
	}

	deepgramAPIKey := viper.GetString("deepgram_api_key")
	if deepgramAPIKey == "" {
		mainLogger.Fatal("missing DEEPGRAM_API_KEY or --deepgram-api-key=")
	}

	store := openStore(mainLogger)

	registry := session.NewRegistry()
	gate := auth.NewGate(store)
	broadcaster := socket.NewBroadcaster(gate, sockLogger)
	transcriber := stt.NewDeepgramClient(deepgramAPIKey, hearLogger)

	discord, err := discordgo.New("Bot " + discordToken)
	if err != nil {
		mainLogger.Fatal("error creating Discord session", "error", err.Error())
	}
	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates

	b, err := bot.New(
		discord,
		store,
		registry,
		broadcaster,
		transcriber,
		viper.GetString("default_prefix"),
		time.Duration(viper.GetInt("render_interval_ms"))*time.Millisecond,
		chatLogger,
	)
	if err != nil {
		mainLogger.Fatal("start discord bot", "error", err.Error())
	}
	defer b.Close()

	server := socket.NewServer(registry, broadcaster, sockLogger)
	go func() {
		if err := server.Serve(viper.GetInt("socket_port")); err != nil {
			mainLogger.Fatal("start socket server", "error", err.Error())
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc
}

func runListTenants(cmd *cobra.Command, args []string) {
	mainLogger, _, _, _ := createLoggers()

	store := openStore(mainLogger)

	tenants, err := store.List(context.Background())
	if err != nil {
		mainLogger.Fatal("fetch tenants", "error", err.Error())
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Prefix", "API", "Keys"})
	table.SetBorder(false)
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)

	for _, t := range tenants {
		state := "disabled"
		if t.APIEnabled {
			state = "enabled"
		}
		table.Append([]string{
			t.ID,
			t.Prefix,
			state,
			fmt.Sprintf("%d", len(t.Keys)),
		})
	}

	table.Render()
}

func openStore(mainLogger *log.Logger) *tenant.PostgresStore {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		mainLogger.Fatal("missing DATABASE_URL or --database-url=")
	}

	store, err := tenant.OpenPostgres(context.Background(), databaseURL)
	if err != nil {
		mainLogger.Fatal("open tenant store", "error", err.Error())
	}
	return store
}

func createLoggers() (mainLogger, chatLogger, hearLogger, sockLogger *log.Logger) {
	logger.SetLevel(log.DebugLevel)
	logger.SetReportCaller(true)
	logger.SetCallerFormatter(
		func(file string, line int, funcName string) string {
			path, err := filepath.Rel(".", file)
			if err != nil {
				path = file
			}
			return fmt.Sprintf("%s:%d", path, line)
		},
	)

	styles := log.DefaultStyles()
	styles.Prefix = styles.Prefix.MarginTop(1).
		Bold(false).Transform(func(s string) string {
		return strings.TrimSuffix(s, ":")
	})
	styles.Levels[log.InfoLevel] = styles.Levels[log.InfoLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Levels[log.ErrorLevel] = styles.Levels[log.ErrorLevel].
		MaxWidth(6).
		MarginRight(1).
		Bold(false)
	styles.Message = styles.Message.Bold(true).Width(24)
	styles.Key = styles.Key.MarginLeft(1).
		Bold(false).
		Foreground(lipgloss.Color("#ff8800"))

	logger.SetStyles(styles)

	mainLogger = logger.With().WithPrefix("main")
	chatLogger = logger.With().WithPrefix("chat")
	hearLogger = logger.With().WithPrefix("hear")
	sockLogger = logger.With().WithPrefix("sock")

	return
}
