// Package archive 提供 tar.gz 归档的创建、校验、列举和提取
//
// 归档规则：
//   - 文件源：归档名为文件的 basename
//   - 目录源：归档名为相对于源目录父目录的路径，即归档内保留顶层目录名
//   - 排除模式：匹配文件名或完整路径（filepath.Match 语法），
//     以 "/" 结尾的模式按目录名子串匹配
//
// 只归档普通文件，目录结构在提取时按需重建。
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Stats 归档创建统计
type Stats struct {
	// FilesCount 归档的文件数
	FilesCount int
	// TotalSize 归档前的文件总字节数
	TotalSize int64
}

// Options 归档创建选项
type Options struct {
	// Excludes 排除模式列表
	Excludes []string
	// OnFile 每个文件加入归档后的回调，可为 nil
	OnFile func(path string)
}

// Entry 归档内的一个成员
type Entry struct {
	Name    string
	Type    string // file/directory/other
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

// Create 将 sources 打包为 dst 指向的 tar.gz 文件
// 打包失败时会删除写了一半的目标文件
func Create(dst string, sources []string, opts Options) (Stats, error) {
	out, err := os.Create(dst)
	if err != nil {
		return Stats{}, fmt.Errorf("create archive file: %w", err)
	}

	stats, err := writeArchive(out, sources, opts)
	if closeErr := out.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("close archive file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(dst)
		return Stats{}, err
	}
	return stats, nil
}

func writeArchive(out io.Writer, sources []string, opts Options) (Stats, error) {
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	var stats Stats
	for _, source := range sources {
		abs, err := filepath.Abs(source)
		if err != nil {
			return stats, fmt.Errorf("resolve source %s: %w", source, err)
		}

		info, err := os.Stat(abs)
		if err != nil {
			return stats, fmt.Errorf("stat source %s: %w", source, err)
		}

		if info.IsDir() {
			if err := addDirectory(tw, abs, opts, &stats); err != nil {
				return stats, err
			}
			continue
		}

		if excluded(abs, opts.Excludes) {
			continue
		}
		if err := addFile(tw, abs, info.Name(), opts, &stats); err != nil {
			return stats, err
		}
	}

	if err := tw.Close(); err != nil {
		return stats, fmt.Errorf("close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return stats, fmt.Errorf("close gzip writer: %w", err)
	}
	return stats, nil
}

// addDirectory 递归归档目录，归档名保留顶层目录名
func addDirectory(tw *tar.Writer, dir string, opts Options, stats *Stats) error {
	base := filepath.Dir(dir)
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			if path != dir && excluded(path, opts.Excludes) {
				return filepath.SkipDir
			}
			return nil
		}
		// 跳过符号链接等非普通文件
		if !d.Type().IsRegular() {
			return nil
		}
		if excluded(path, opts.Excludes) {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", path, err)
		}
		return addFile(tw, path, rel, opts, stats)
	})
}

func addFile(tw *tar.Writer, path, arcname string, opts Options, stats *Stats) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("build header for %s: %w", path, err)
	}
	header.Name = filepath.ToSlash(arcname)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write header for %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	_, err = io.Copy(tw, f)
	if closeErr := f.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("archive %s: %w", path, err)
	}

	stats.FilesCount++
	stats.TotalSize += info.Size()
	if opts.OnFile != nil {
		opts.OnFile(path)
	}
	return nil
}

// excluded 判断路径是否命中排除模式
// 依次尝试匹配完整路径和 basename，以 "/" 结尾的模式按子串匹配
func excluded(path string, patterns []string) bool {
	normalized := filepath.ToSlash(filepath.Clean(path))
	base := filepath.Base(path)

	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, normalized); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if strings.HasSuffix(pattern, "/") && strings.Contains(normalized, strings.TrimSuffix(pattern, "/")) {
			return true
		}
	}
	return false
}

// List 返回归档的全部成员，按名称排序
func List(src string) ([]Entry, error) {
	entries := make([]Entry, 0)
	err := walkArchive(src, func(header *tar.Header, r io.Reader) error {
		entry := Entry{
			Name:    header.Name,
			Size:    header.Size,
			Mode:    os.FileMode(header.Mode),
			ModTime: header.ModTime,
		}
		switch header.Typeflag {
		case tar.TypeReg:
			entry.Type = "file"
		case tar.TypeDir:
			entry.Type = "directory"
		default:
			entry.Type = "other"
		}
		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Extract 提取归档到 dst 目录
// patterns 非空时只提取名称包含任一模式子串的成员，返回提取的成员数
func Extract(src, dst string, patterns []string) (int, error) {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return 0, fmt.Errorf("create restore directory: %w", err)
	}

	extracted := 0
	err := walkArchive(src, func(header *tar.Header, r io.Reader) error {
		if len(patterns) > 0 && !matchAny(header.Name, patterns) {
			return nil
		}

		// 防止归档成员逃逸到目标目录之外
		if !filepath.IsLocal(filepath.FromSlash(header.Name)) {
			return fmt.Errorf("unsafe archive member name: %s", header.Name)
		}
		target := filepath.Join(dst, filepath.FromSlash(header.Name))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", target, err)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}
			_, err = io.Copy(f, r)
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
			if err != nil {
				return fmt.Errorf("extract %s: %w", header.Name, err)
			}
			_ = os.Chtimes(target, header.ModTime, header.ModTime)
		default:
			// 其他类型的成员不提取
			return nil
		}

		extracted++
		return nil
	})
	if err != nil {
		return extracted, err
	}
	return extracted, nil
}

func matchAny(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}
	return false
}

// Verify 检查归档自身的可读性：遍历所有成员并试读前几个文件的开头
// 返回成员总数
func Verify(src string) (int, error) {
	const maxProbes = 5
	const probeBytes = 1024

	count := 0
	probed := 0
	err := walkArchive(src, func(header *tar.Header, r io.Reader) error {
		count++
		if header.Typeflag == tar.TypeReg && probed < maxProbes {
			buf := make([]byte, probeBytes)
			if _, err := r.Read(buf); err != nil && err != io.EOF {
				return fmt.Errorf("read member %s: %w", header.Name, err)
			}
			probed++
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// walkArchive 打开 tar.gz 并依次回调每个成员
func walkArchive(src string, fn func(*tar.Header, io.Reader) error) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("open gzip stream: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tar stream: %w", err)
		}
		if err := fn(header, tr); err != nil {
			return err
		}
	}
}

// SHA256 计算文件的 SHA-256 校验和，返回十六进制字符串
func SHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
