package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/model"
	"campus-tutor-go/pkg/embedding"
	"campus-tutor-go/pkg/log"
	"campus-tutor-go/pkg/queue"
	"campus-tutor-go/pkg/storage"
	"campus-tutor-go/pkg/tika"
	"campus-tutor-go/pkg/vectorindex"

	"github.com/google/uuid"
)

// ErrIngestion 是导入阶段失败的统一哨兵错误。
// 已提交的批次不会回滚，导入不是事务性的。
var ErrIngestion = errors.New("导入失败")

const defaultBatchSize = 10

// Processor 封装了课程资料导入的所有依赖和逻辑。
type Processor struct {
	tikaClient      *tika.Client
	embeddingClient embedding.Client
	esCfg           config.ElasticsearchConfig
	embeddingCfg    config.EmbeddingConfig
	minioCfg        config.MinIOConfig
	ingestCfg       config.IngestConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	embeddingClient embedding.Client,
	esCfg config.ElasticsearchConfig,
	embeddingCfg config.EmbeddingConfig,
	minioCfg config.MinIOConfig,
	ingestCfg config.IngestConfig,
) *Processor {
	return &Processor{
		tikaClient:      tikaClient,
		embeddingClient: embeddingClient,
		esCfg:           esCfg,
		embeddingCfg:    embeddingCfg,
		minioCfg:        minioCfg,
		ingestCfg:       ingestCfg,
	}
}

// ProcessFile 提取单个文件的文本并切分为带元数据的分块。
// 不支持的扩展名返回零个分块（跳过，不算错误）。
func (p *Processor) ProcessFile(ctx context.Context, path string) ([]model.Chunk, error) {
	text, supported, err := p.extractText(ctx, path)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, nil
	}
	if strings.TrimSpace(text) == "" {
		log.Warnf("[Processor] 文件 '%s' 提取出的文本为空，跳过", path)
		return nil, nil
	}
	log.Infof("[Processor] 文本提取成功: %s, 内容长度: %d 字符", path, utf8.RuneCountInString(text))

	maxChunkSize := p.ingestCfg.MaxChunkSize
	if maxChunkSize == 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	overlapChars := p.ingestCfg.OverlapChars
	if overlapChars == 0 {
		overlapChars = DefaultOverlapChars
	}

	texts := ChunkText(text, maxChunkSize, overlapChars)
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	chunks := make([]model.Chunk, 0, len(texts))
	for i, t := range texts {
		chunks = append(chunks, model.Chunk{
			Text: t,
			Metadata: model.ChunkMetadata{
				FileName:    filepath.Base(path),
				FilePath:    path,
				ChunkIndex:  i,
				TotalChunks: len(texts),
				FileType:    fileType,
			},
		})
	}
	log.Infof("[Processor] 文件 '%s' 切分完成, 共 %d 个分块", path, len(chunks))
	return chunks, nil
}

// ProcessDirectory 深度优先遍历目录，收集所有受支持文件的分块。
// recursive 为 false 时只处理根目录下的文件。
func (p *Processor) ProcessDirectory(ctx context.Context, root string, recursive bool) ([]model.Chunk, error) {
	var all []model.Chunk
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != root {
				return fs.SkipDir
			}
			return nil
		}
		chunks, perr := p.ProcessFile(ctx, path)
		if perr != nil {
			return perr
		}
		if len(chunks) > 0 && p.ingestCfg.SourceArchive {
			p.archiveSource(ctx, root, path)
		}
		all = append(all, chunks...)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: 遍历目录 '%s' 失败: %v", ErrIngestion, root, walkErr)
	}
	return all, nil
}

// archiveSource 将原件归档到对象存储，失败只记日志，不影响导入。
func (p *Processor) archiveSource(ctx context.Context, root, path string) {
	objectName, err := filepath.Rel(root, path)
	if err != nil {
		objectName = filepath.Base(path)
	}
	if err := storage.ArchiveSourceFile(ctx, p.minioCfg.BucketName, objectName, path); err != nil {
		log.Warnf("[Processor] 归档原件失败: %s, err=%v", path, err)
	}
}

// UpsertDocuments 将分块向量化并写入向量索引。
//
// 先确保索引存在（维度取自 Embedding 配置，cosine 相似度），然后
// 按批（默认 10 个）一次调用完成整批向量化，为每个分块生成全新的
// UUID 作为点 ID 后逐点写入。批与批之间插入一个短暂停顿，避免触发
// Embedding 服务的限流。任何一批失败即中止并返回 ErrIngestion，
// 已写入的批次不回滚。
func (p *Processor) UpsertDocuments(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		log.Info("[Processor] 没有需要写入的分块")
		return nil
	}

	if err := vectorindex.EnsureIndex(p.esCfg.IndexName, p.embeddingCfg.Dimensions); err != nil {
		return fmt.Errorf("%w: 确保索引存在失败: %v", ErrIngestion, err)
	}

	batchSize := p.ingestCfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := time.Duration(p.ingestCfg.BatchDelayMillis) * time.Millisecond
	if batchDelay <= 0 {
		batchDelay = 500 * time.Millisecond
	}

	total := (len(chunks) + batchSize - 1) / batchSize
	for batchIdx := 0; batchIdx*batchSize < len(chunks); batchIdx++ {
		start := batchIdx * batchSize
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		log.Infof("[Processor] 正在处理批次 %d/%d, 分块数: %d", batchIdx+1, total, len(batch))

		texts := make([]string, 0, len(batch))
		for _, c := range batch {
			texts = append(texts, c.Text)
		}
		vectors, err := p.embeddingClient.CreateEmbeddings(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: 批次 %d 向量化失败: %v", ErrIngestion, batchIdx+1, err)
		}

		for i, c := range batch {
			doc := model.ChunkDocument{
				ID:           uuid.NewString(),
				Vector:       vectors[i],
				TextContent:  c.Text,
				FileName:     c.Metadata.FileName,
				FilePath:     c.Metadata.FilePath,
				ChunkIndex:   c.Metadata.ChunkIndex,
				TotalChunks:  c.Metadata.TotalChunks,
				FileType:     c.Metadata.FileType,
				ModelVersion: p.embeddingCfg.Model,
			}
			if err := vectorindex.IndexDocument(ctx, p.esCfg.IndexName, doc); err != nil {
				return fmt.Errorf("%w: 批次 %d 写入索引失败: %v", ErrIngestion, batchIdx+1, err)
			}
		}

		if end < len(chunks) {
			time.Sleep(batchDelay)
		}
	}

	log.Infof("[Processor] 全部批次处理完毕, 共写入 %d 个分块", len(chunks))
	return nil
}

// IngestDirectory 是遍历加写入的组合入口，CLI 与异步任务共用。
func (p *Processor) IngestDirectory(ctx context.Context, root string, recursive bool) error {
	log.Infof("[Processor] 开始导入目录: %s, recursive=%v", root, recursive)
	chunks, err := p.ProcessDirectory(ctx, root, recursive)
	if err != nil {
		return err
	}
	return p.UpsertDocuments(ctx, chunks)
}

// Process 实现 queue.TaskProcessor，处理来自 Kafka 的重建索引任务。
func (p *Processor) Process(ctx context.Context, task queue.IngestTask) error {
	return p.IngestDirectory(ctx, task.SourceDir, task.Recursive)
}
