package vault

import (
	"path/filepath"
	"testing"

	"reel-go/internal/config"
)

func TestNewVaultFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.VaultConfig
		wantErr bool
		wantNil bool
	}{
		{
			name: "memory vault",
			cfg: config.VaultConfig{
				Type: "memory",
				Name: "test-memory",
			},
			wantErr: false,
			wantNil: false,
		},
		{
			name: "s3 vault without bucket",
			cfg: config.VaultConfig{
				Type: "s3",
				Name: "test-s3",
			},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "s3 vault with half a key pair",
			cfg: config.VaultConfig{
				Type:          "s3",
				Name:          "test-s3",
				S3Bucket:      "my-bucket",
				S3AccessKeyID: "AKIAEXAMPLE",
			},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "filesystem vault without root",
			cfg: config.VaultConfig{
				Type: "filesystem",
				Name: "test-fs",
			},
			wantErr: true,
			wantNil: true,
		},
		{
			name: "unknown vault type",
			cfg: config.VaultConfig{
				Type: "unknown",
				Name: "test-unknown",
			},
			wantErr: true,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewVaultFromConfig(tt.cfg)

			if (err != nil) != tt.wantErr {
				t.Errorf("NewVaultFromConfig() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if (got == nil) != tt.wantNil {
				t.Errorf("NewVaultFromConfig() returned nil = %v, wantNil %v", got == nil, tt.wantNil)
			}

			if !tt.wantErr && got != nil {
				if err := got.ValidateSetup(); err != nil {
					t.Errorf("ValidateSetup() error = %v", err)
				}
			}
		})
	}
}

func TestNewVaultFromConfig_FileSystem(t *testing.T) {
	root := filepath.Join(t.TempDir(), "vault")
	got, err := NewVaultFromConfig(config.VaultConfig{
		Type:        "filesystem",
		Name:        "test-fs",
		FSVaultRoot: root,
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}
	if err := got.ValidateSetup(); err != nil {
		t.Errorf("ValidateSetup() error = %v", err)
	}
}

func TestNewVaultFromConfig_S3(t *testing.T) {
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	got, err := NewVaultFromConfig(config.VaultConfig{
		Type:              "s3",
		Name:              "test-s3",
		S3Bucket:          "my-bucket",
		S3Prefix:          "/reel/",
		S3Region:          "us-east-1",
		S3Endpoint:        "http://127.0.0.1:9000",
		S3AccessKeyID:     "AKIAEXAMPLE",
		S3SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewVaultFromConfig() error = %v", err)
	}
	v, ok := got.(*S3Vault)
	if !ok {
		t.Fatalf("NewVaultFromConfig() = %T, want *S3Vault", got)
	}
	if v.bucket != "my-bucket" || v.prefix != "reel" {
		t.Errorf("bucket, prefix = %q, %q, want %q, %q", v.bucket, v.prefix, "my-bucket", "reel")
	}
}
