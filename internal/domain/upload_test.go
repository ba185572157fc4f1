package domain

import "testing"

func TestCreateUploadRequestValidate(t *testing.T) {
	valid := CreateUploadRequest{
		SourceType: SourceTypeS3Presigned,
		Name:       "photo.jpg",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	if err := (CreateUploadRequest{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingObjectKey := CreateUploadRequest{SourceType: SourceTypeLocalFile}
	if err := missingObjectKey.Validate(); err == nil {
		t.Fatal("expected validation error for missing object_key")
	}

	missingName := CreateUploadRequest{SourceType: SourceTypeS3Presigned}
	if err := missingName.Validate(); err == nil {
		t.Fatal("expected validation error for missing name")
	}

	unsupported := CreateUploadRequest{SourceType: "ftp", Name: "x"}
	if err := unsupported.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported source_type")
	}
}

func TestStatusForResults(t *testing.T) {
	ok := VariantResult{OK: true}
	bad := VariantResult{OK: false, Error: "failed"}

	if got := StatusForResults(nil); got != UploadStatusSucceeded {
		t.Fatalf("empty results should succeed, got %s", got)
	}
	if got := StatusForResults([]VariantResult{ok, ok}); got != UploadStatusSucceeded {
		t.Fatalf("expected succeeded, got %s", got)
	}
	if got := StatusForResults([]VariantResult{ok, bad}); got != UploadStatusPartial {
		t.Fatalf("expected partial, got %s", got)
	}
	if got := StatusForResults([]VariantResult{bad, bad}); got != UploadStatusFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}
