package constants

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)
