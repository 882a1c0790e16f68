package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"strings"
	"syscall"

	"github.com/cocosip/fastdfs-go/internal/logger"
	"github.com/cocosip/fastdfs-go/pkg/client"
	"github.com/cocosip/fastdfs-go/pkg/config"
	"github.com/cocosip/fastdfs-go/pkg/metrics"
)

const usage = `Usage: fdfs [flags] <command> [args]

Commands:
  upload <local-file>            store a file, prints its identifier
  download <file-id>             fetch a file
  delete <file-id>               remove a file
  append <file-id> <local-file>  append to an appender file
  meta-get <file-id>             print file metadata
  meta-set <file-id> k=v [k=v]   overwrite file metadata
  stat <file-id>                 print file size, mtime, crc and origin
`

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	trackers := flag.String("trackers", "", "Comma-separated tracker endpoints, overrides config")
	group := flag.String("group", "", "Storage group for uploads / bare-path identifiers")
	output := flag.String("o", "", "Output file for download (default: remote base name)")
	appender := flag.Bool("appender", false, "Upload as an appender file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *trackers != "" {
		cfg.Trackers = strings.Split(*trackers, ",")
	}
	if *group != "" {
		cfg.DefaultGroup = *group
	}

	logger.SetLevel(cfg.Logging.Level)
	if cfg.Logging.Output == "stderr" {
		logger.SetOutput(os.Stderr)
	}
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
	}

	opts, err := cfg.ClientOptions()
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}

	c, err := client.New(opts)
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, args, *group, *output, *appender); err != nil {
		log.Fatalf("%s: %v", args[0], err)
	}
}

func run(ctx context.Context, c *client.Client, args []string, group, output string, appender bool) error {
	verb, operands := args[0], args[1:]

	switch verb {
	case "upload":
		if len(operands) != 1 {
			return fmt.Errorf("upload needs exactly one local file")
		}
		return upload(ctx, c, operands[0], group, appender)

	case "download":
		if len(operands) != 1 {
			return fmt.Errorf("download needs exactly one file identifier")
		}
		return download(ctx, c, operands[0], output)

	case "delete":
		if len(operands) != 1 {
			return fmt.Errorf("delete needs exactly one file identifier")
		}
		return c.DeleteFile(ctx, operands[0])

	case "append":
		if len(operands) != 2 {
			return fmt.Errorf("append needs a file identifier and a local file")
		}
		data, err := os.ReadFile(operands[1])
		if err != nil {
			return err
		}
		return c.AppendBuffer(ctx, operands[0], data)

	case "meta-get":
		if len(operands) != 1 {
			return fmt.Errorf("meta-get needs exactly one file identifier")
		}
		meta, err := c.GetMetadata(ctx, operands[0])
		if err != nil {
			return err
		}
		for k, v := range meta {
			fmt.Printf("%s=%s\n", k, v)
		}
		return nil

	case "meta-set":
		if len(operands) < 2 {
			return fmt.Errorf("meta-set needs a file identifier and at least one k=v pair")
		}
		meta := make(map[string]string)
		for _, pair := range operands[1:] {
			k, v, found := strings.Cut(pair, "=")
			if !found || k == "" {
				return fmt.Errorf("malformed metadata pair %q", pair)
			}
			meta[k] = v
		}
		return c.SetMetadata(ctx, operands[0], meta)

	case "stat":
		if len(operands) != 1 {
			return fmt.Errorf("stat needs exactly one file identifier")
		}
		info, err := c.Stat(ctx, operands[0])
		if err != nil {
			return err
		}
		fmt.Printf("size: %d\ncreated: %s\ncrc32: %08x\nsource: %s\n",
			info.FileSize, info.CreateTime.Format("2006-01-02 15:04:05"), info.CRC32, info.SourceIP)
		return nil

	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

func upload(ctx context.Context, c *client.Client, localPath, group string, appender bool) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	ext := strings.TrimPrefix(path.Ext(localPath), ".")

	var id client.FileID
	if appender {
		id, err = c.UploadAppenderBuffer(ctx, data, ext, group)
	} else {
		id, err = c.UploadBuffer(ctx, data, ext, group)
	}
	if err != nil {
		return err
	}

	fmt.Println(id.String())
	return nil
}

func download(ctx context.Context, c *client.Client, fileID, output string) error {
	data, err := c.DownloadBuffer(ctx, fileID)
	if err != nil {
		return err
	}

	if output == "" {
		output = path.Base(fileID)
	}
	return os.WriteFile(output, data, 0644)
}
