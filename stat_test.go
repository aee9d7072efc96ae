package blockfs

import (
	"os"
	"reflect"
	"testing"
	"time"
)

func TestAttributes_FileInfo(t *testing.T) {
	modTime := time.Date(2020, 1, 2, 3, 4, 6, 0, time.UTC)

	tests := []struct {
		name       string
		attributes Attributes
		wantName   string
		wantSize   int64
		wantMode   os.FileMode
		wantIsDir  bool
	}{
		{
			name:       "root",
			attributes: Attributes{Kind: KindDirectory, Name: "/"},
			wantName:   "/",
			wantMode:   os.ModeDir | 0755,
			wantIsDir:  true,
		},
		{
			name:       "directory",
			attributes: Attributes{Kind: KindDirectory, Name: "docs", StartBlock: 1},
			wantName:   "docs",
			wantMode:   os.ModeDir | 0755,
			wantIsDir:  true,
		},
		{
			name:       "file",
			attributes: Attributes{Kind: KindRegularFile, Name: "readme.txt", Size: 1234, ModTime: modTime, StartBlock: 2},
			wantName:   "readme.txt",
			wantSize:   1234,
			wantMode:   0666,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.attributes.FileInfo()
			if info.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", info.Name(), tt.wantName)
			}
			if info.Size() != tt.wantSize {
				t.Errorf("Size() = %v, want %v", info.Size(), tt.wantSize)
			}
			if info.Mode() != tt.wantMode {
				t.Errorf("Mode() = %v, want %v", info.Mode(), tt.wantMode)
			}
			if info.IsDir() != tt.wantIsDir {
				t.Errorf("IsDir() = %v, want %v", info.IsDir(), tt.wantIsDir)
			}
			if !info.ModTime().Equal(tt.attributes.ModTime) {
				t.Errorf("ModTime() = %v, want %v", info.ModTime(), tt.attributes.ModTime)
			}
			if !reflect.DeepEqual(info.Sys(), tt.attributes) {
				t.Errorf("Sys() = %v, want %v", info.Sys(), tt.attributes)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if got := KindDirectory.String(); got != "directory" {
		t.Errorf("KindDirectory.String() = %v", got)
	}
	if got := KindRegularFile.String(); got != "file" {
		t.Errorf("KindRegularFile.String() = %v", got)
	}
}
