package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// SaveGob は値をgob形式でファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、途中で失敗しても
// 既存のファイルは壊れません。
//
// 使用例:
//
//	err := model.SaveGob("artifacts/features_train.gob", paired.Labeled)
func SaveGob(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	defer os.Remove(tmp.Name())

	if err := SaveGobToWriter(tmp, v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename to %s", path)
}

// LoadGob はgob形式のファイルから値を読み込む
//
// 使用例:
//
//	var tbl dataset.Table
//	err := model.LoadGob("artifacts/features_train.gob", &tbl)
func LoadGob(path string, v interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadGobFromReader(file, v)
}

// SaveGobToWriter は値をio.Writerにgob形式で書き込む
func SaveGobToWriter(w io.Writer, v interface{}) error {
	if err := gob.NewEncoder(w).Encode(v); err != nil {
		return errors.Wrap(err, "failed to encode value")
	}
	return nil
}

// LoadGobFromReader はio.Readerからgob形式の値を読み込む
func LoadGobFromReader(r io.Reader, v interface{}) error {
	if err := gob.NewDecoder(r).Decode(v); err != nil {
		return errors.Wrap(err, "failed to decode value")
	}
	return nil
}

// Exists はパスにファイルが存在するかを返す
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
