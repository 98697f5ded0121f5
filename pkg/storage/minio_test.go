package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// 预签名在本地完成，测试不需要真实的对象存储服务。
func newOfflineClient(t *testing.T) *minio.Client {
	t.Helper()
	client, err := minio.New("127.0.0.1:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
		Region: "us-east-1",
	})
	if err != nil {
		t.Fatalf("minio.New: %v", err)
	}
	return client
}

func TestGetPresignedURL(t *testing.T) {
	old := MinioClient
	MinioClient = newOfflineClient(t)
	defer func() { MinioClient = old }()

	url, err := GetPresignedURL(context.Background(), "course-sources", "week01/lecture01.txt", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetPresignedURL: %v", err)
	}
	if !strings.Contains(url, "/course-sources/week01/lecture01.txt") {
		t.Errorf("url missing object path: %s", url)
	}
	if !strings.Contains(url, "X-Amz-Signature=") {
		t.Errorf("url missing signature: %s", url)
	}
	if !strings.Contains(url, "X-Amz-Expires=900") {
		t.Errorf("url expiry is not 900s: %s", url)
	}
}

func TestGetPresignedURLSignatureVaries(t *testing.T) {
	old := MinioClient
	MinioClient = newOfflineClient(t)
	defer func() { MinioClient = old }()

	first, err := GetPresignedURL(context.Background(), "course-sources", "week01/lecture01.txt", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetPresignedURL: %v", err)
	}
	second, err := GetPresignedURL(context.Background(), "course-sources", "week02/lecture02.txt", 15*time.Minute)
	if err != nil {
		t.Fatalf("GetPresignedURL: %v", err)
	}
	if strings.Split(first, "?")[1] == strings.Split(second, "?")[1] {
		t.Error("signatures identical for different objects")
	}
}
