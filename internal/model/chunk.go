package model

// ChunkMetadata 记录一个分块的来源信息，随向量一起写入索引。
type ChunkMetadata struct {
	FileName    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	FileType    string `json:"file_type"`
}

// Chunk 是切分后尚未向量化的文本分块。
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// ChunkDocument 定义了存储在 Elasticsearch 中的向量点结构。
// 创建后不再修改；ID 在导入时新生成。
type ChunkDocument struct {
	ID           string    `json:"id"`
	Vector       []float32 `json:"vector"`
	TextContent  string    `json:"text_content"`
	FileName     string    `json:"file_name"`
	FilePath     string    `json:"file_path"`
	ChunkIndex   int       `json:"chunk_index"`
	TotalChunks  int       `json:"total_chunks"`
	FileType     string    `json:"file_type"`
	ModelVersion string    `json:"model_version"`
}

// RetrievedChunk 是一次相似度检索命中的分块。
type RetrievedChunk struct {
	Text     string        `json:"text"`
	Score    float64       `json:"score"`
	Metadata ChunkMetadata `json:"metadata"`
}
