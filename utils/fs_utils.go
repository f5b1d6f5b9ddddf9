package utils

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// WriteFile writes data to the file at the provided path, creating any parent directories which do not exist.
// Returns an error if one occurs.
func WriteFile(filePath string, data []byte) error {
	err := MakeDirectory(filepath.Dir(filePath))
	if err != nil {
		return err
	}
	return errors.WithStack(os.WriteFile(filePath, data, 0644))
}

// CopyFile copies a file from a source path to a destination path. File permissions are retained. Returns an error
// if one occurs.
func CopyFile(sourcePath string, targetPath string) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if sourceInfo.IsDir() {
		return errors.Errorf("could not copy file from '%s' to '%s' because the source path refers to a directory", sourcePath, targetPath)
	}

	err = MakeDirectory(filepath.Dir(targetPath))
	if err != nil {
		return err
	}

	sourceFile, err := os.Open(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	targetFile, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}
	defer targetFile.Close()

	_, err = io.Copy(targetFile, sourceFile)
	return errors.WithStack(err)
}

// CopyDirectory copies a directory from a source path to a destination path. If recursively, all subdirectories
// are copied. If not, only files within the directory are copied. Returns an error if one occurs.
func CopyDirectory(sourcePath string, targetPath string, recursively bool) error {
	sourceInfo, err := os.Stat(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	if !sourceInfo.IsDir() {
		return errors.Errorf("could not copy directory from '%s' to '%s' because the source path does not refer to a valid directory", sourcePath, targetPath)
	}

	err = os.MkdirAll(targetPath, sourceInfo.Mode().Perm())
	if err != nil {
		return errors.WithStack(err)
	}

	dirEntries, err := os.ReadDir(sourcePath)
	if err != nil {
		return errors.WithStack(err)
	}
	for _, dirEntry := range dirEntries {
		entSourcePath := filepath.Join(sourcePath, dirEntry.Name())
		entTargetPath := filepath.Join(targetPath, dirEntry.Name())

		if dirEntry.IsDir() {
			if !recursively {
				continue
			}
			err = CopyDirectory(entSourcePath, entTargetPath, recursively)
		} else {
			err = CopyFile(entSourcePath, entTargetPath)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MakeDirectory creates a directory at the given path, including any parent directories which do not exist.
// Returns an error if the path refers to a file, or if one occurred.
func MakeDirectory(dirToMake string) error {
	dirInfo, err := os.Stat(dirToMake)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.WithStack(os.MkdirAll(dirToMake, 0755))
		}
		return errors.WithStack(err)
	}

	if !dirInfo.IsDir() {
		return errors.Errorf("there is a file with the same name as '%s'", dirToMake)
	}
	return nil
}

// DeleteDirectory deletes a directory at the provided path and its contents. Deleting a directory which does not
// exist is not an error.
func DeleteDirectory(directoryPath string) error {
	dirInfo, err := os.Stat(directoryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.WithStack(err)
	}

	if !dirInfo.IsDir() {
		return errors.Errorf("cannot delete directory '%s' as the provided path refers to a file", directoryPath)
	}
	return errors.WithStack(os.RemoveAll(directoryPath))
}

// DeleteFile deletes the file at the provided path. Deleting a file which does not exist is not an error.
func DeleteFile(filePath string) error {
	err := os.Remove(filePath)
	if err != nil && !os.IsNotExist(err) {
		return errors.WithStack(err)
	}
	return nil
}

// PathExists indicates whether a file or directory exists at the provided path.
func PathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
