package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"docrag/internal/logger"
	"docrag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and query HTTP API",
	Long: `Start an HTTP server exposing:
  POST /upload   multipart field "file"  -> {"message", "chunks_stored"}
  POST /query    {"question", "top_k"}   -> {"answer"}
  GET  /health`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, GetRootDir(), true)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(a.ingest, a.pipeline, server.Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		Logger:         logger.FromContext(ctx),
	})
	return srv.Run(ctx, addr)
}
