// Package main 是课程资料批量导入工具的入口点。
package main

import (
	"context"
	"flag"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/pipeline"
	"campus-tutor-go/pkg/embedding"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/storage"
	"campus-tutor-go/pkg/tika"
	"campus-tutor-go/pkg/vectorindex"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	dir := flag.String("dir", "", "待导入的课程资料目录（默认取配置中的 default_source_dir）")
	recursive := flag.Bool("recursive", false, "是否递归遍历子目录")
	flag.Parse()

	config.Init(*configPath)
	cfg := config.Conf

	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()

	sourceDir := *dir
	if sourceDir == "" {
		sourceDir = cfg.Ingest.DefaultSourceDir
	}
	if sourceDir == "" {
		log.Fatalf("未指定导入目录：使用 -dir 或在配置中设置 ingest.default_source_dir")
	}
	recurse := *recursive || cfg.Ingest.RecursiveByDefault

	if cfg.Ingest.SourceArchive {
		storage.InitMinIO(cfg.MinIO)
	}
	if err := vectorindex.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Fatalf("es 初始化失败: %v", err)
	}

	processor := pipeline.NewProcessor(
		tika.NewClient(cfg.Tika),
		embedding.NewClient(cfg.Embedding),
		cfg.Elasticsearch,
		cfg.Embedding,
		cfg.MinIO,
		cfg.Ingest,
	)

	log.Infof("开始导入目录: %s (recursive=%v)", sourceDir, recurse)
	if err := processor.IngestDirectory(context.Background(), sourceDir, recurse); err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	log.Info("导入完成")
}
