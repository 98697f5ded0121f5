// Package vectorindex 提供了基于 Elasticsearch 的向量索引客户端。
package vectorindex

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"campus-tutor-go/internal/config"
	"campus-tutor-go/internal/model"
	"campus-tutor-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

// InitES 初始化 Elasticsearch 客户端并确保向量索引存在。
// dims 必须与 Embedding 模型的输出维度一致，否则相似度检索没有意义。
func InitES(esCfg config.ElasticsearchConfig, dims int) error {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return err
	}
	ESClient = client
	return EnsureIndex(esCfg.IndexName, dims)
}

// EnsureIndex 检查索引是否存在，如果不存在则按 cosine 相似度创建它。
func EnsureIndex(indexName string, dims int) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	// 200 说明索引已存在
	if !res.IsError() && res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("检查索引 '%s' 是否存在时收到意外的状态码: %d", indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	// 向量维度由 Embedding 配置决定（参考配置为 3072），相似度固定为 cosine
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"id": { "type": "keyword" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"file_name": { "type": "keyword" },
				"file_path": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"total_chunks": { "type": "integer" },
				"file_type": { "type": "keyword" },
				"model_version": { "type": "keyword" }
			}
		}
	}`, dims)

	res, err = ESClient.Indices.Create(
		indexName,
		ESClient.Indices.Create.WithBody(strings.NewReader(mapping)),
	)

	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// IndexDocument 将单个分块向量点写入 Elasticsearch。
func IndexDocument(ctx context.Context, indexName string, doc model.ChunkDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      indexName,
		DocumentID: doc.ID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, ESClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}

	return nil
}

// SearchSimilar 按 cosine 相似度对查询向量执行 kNN 检索，返回 top-K 命中分块。
func SearchSimilar(ctx context.Context, indexName string, vector []float32, k int) ([]model.RetrievedChunk, error) {
	var buf bytes.Buffer
	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vector,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size": k,
	}
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := ESClient.Search(
		ESClient.Search.WithContext(ctx),
		ESClient.Search.WithIndex(indexName),
		ESClient.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("Elasticsearch 检索返回错误: %s", res.String())
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.String())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.ChunkDocument `json:"_source"`
				Score  float64             `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.RetrievedChunk, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		results = append(results, model.RetrievedChunk{
			Text:  hit.Source.TextContent,
			Score: hit.Score,
			Metadata: model.ChunkMetadata{
				FileName:    hit.Source.FileName,
				FilePath:    hit.Source.FilePath,
				ChunkIndex:  hit.Source.ChunkIndex,
				TotalChunks: hit.Source.TotalChunks,
				FileType:    hit.Source.FileType,
			},
		})
	}
	return results, nil
}
