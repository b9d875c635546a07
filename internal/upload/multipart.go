package upload

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/yuit/yuit-site/internal/model"
)

var (
	// ErrTooManyFiles は受理した添付ファイル数が上限を超えたことを示す。
	ErrTooManyFiles = errors.New("too many files")
	// ErrTotalSizeExceeded は添付ファイルの合計サイズが上限を超えたことを示す。
	ErrTotalSizeExceeded = errors.New("total file size exceeded")
	// ErrMalformedForm はマルチパートボディとして解釈できないことを示す。
	ErrMalformedForm = errors.New("malformed multipart form")
)

const (
	// MaxFiles は添付ファイル数の上限。
	MaxFiles = 3
	// MaxTotalFileSize は添付ファイル合計サイズの上限（30MiB）。
	MaxTotalFileSize int64 = 30 * 1024 * 1024
	// maxFieldsSize はテキストフィールド合計サイズの上限（20MiB）。
	maxFieldsSize int64 = 20 * 1024 * 1024
	// bodyOverhead はマルチパートの境界やヘッダー分の余裕。
	bodyOverhead int64 = 1 * 1024 * 1024

	// AttachmentField は添付ファイルを受け付けるフォームフィールド名。
	AttachmentField = "attachments"
)

// allowedExtensions は添付を許可する拡張子（小文字、ドット付き）。
var allowedExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".pdf":  true,
}

// allowedMimeTypes は添付を許可する申告MIMEタイプ。
var allowedMimeTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"application/pdf": true,
}

// IsAllowedExtension は拡張子（ドット付き）が許可リストに含まれるかを返す。大文字小文字は区別しない。
func IsAllowedExtension(ext string) bool {
	return allowedExtensions[strings.ToLower(ext)]
}

// Ext はファイル名の拡張子（ドット付き）を返す。
// ".png"のように先頭のドット以外にドットを含まない名前は拡張子なしとして扱う。
func Ext(filename string) string {
	base := filepath.Base(filename)
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return base[i:]
}

// IsAllowedMimeType は申告MIMEタイプが許可リストに含まれるかを返す。
func IsAllowedMimeType(mimeType string) bool {
	return allowedMimeTypes[strings.ToLower(mimeType)]
}

// Limits はマルチパート解析時に適用する上限値。
type Limits struct {
	MaxFiles         int
	MaxTotalFileSize int64
	MaxFieldsSize    int64
}

// DefaultLimits はお問い合わせフォームの上限値を返す。
func DefaultLimits() Limits {
	return Limits{
		MaxFiles:         MaxFiles,
		MaxTotalFileSize: MaxTotalFileSize,
		MaxFieldsSize:    maxFieldsSize,
	}
}

// FormValues はテキストフィールドの値。同名フィールドが複数回送られた場合はすべて保持する。
type FormValues map[string][]string

// First は指定フィールドの最初の値を返す。未送信の場合は空文字列。
func (v FormValues) First(key string) string {
	return firstValue(v[key])
}

// firstValue は単一値・複数値のどちらで届いたフィールドでも先頭の値を返す。
func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Form は解析済みのフォーム。
type Form struct {
	Values FormValues
	Files  []*model.UploadedFile
}

// Parser はマルチパートボディをストリーミングで解析する。
// 上限の判定はボディの読み取り中に行い、超過した時点で解析を打ち切る。
type Parser struct {
	limits Limits
	logger *slog.Logger
}

// NewParser はParserを生成する。
func NewParser(limits Limits, logger *slog.Logger) *Parser {
	return &Parser{
		limits: limits,
		logger: logger,
	}
}

// MaxBodyBytes はリクエストボディ全体の読み取り上限を返す。
func (p *Parser) MaxBodyBytes() int64 {
	return p.limits.MaxTotalFileSize + p.limits.MaxFieldsSize + bodyOverhead
}

// Parse はリクエストボディを解析する。
// 添付ファイルはsetを通じて一時ファイルに書き出す。エラー時も作成済みの一時ファイルは
// setに登録されたままなので、呼び出し側のReleaseで削除される。
//
// 申告MIMEタイプまたは拡張子が許可されていないファイルは黙って除外する。
// 受理したファイル数がMaxFilesを超えた場合はErrTooManyFiles、
// 合計サイズがMaxTotalFileSizeを超えた場合はErrTotalSizeExceededを返す。
func (p *Parser) Parse(r *http.Request, set *TempSet) (*Form, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedForm, err)
	}

	form := &Form{Values: FormValues{}}
	var totalFileSize, totalFieldsSize int64

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyReadError(err)
		}

		if !isFilePart(part) {
			n, err := p.readField(part, form.Values, p.limits.MaxFieldsSize-totalFieldsSize)
			part.Close()
			if err != nil {
				return nil, err
			}
			totalFieldsSize += n
			continue
		}

		file, n, err := p.readFile(part, set, len(form.Files), p.limits.MaxTotalFileSize-totalFileSize)
		part.Close()
		if err != nil {
			return nil, err
		}
		if file == nil {
			continue
		}
		totalFileSize += n
		form.Files = append(form.Files, file)
	}

	if len(form.Files) > 0 {
		p.logger.Debug("添付ファイルを受け付けました",
			slog.Int("file_count", len(form.Files)),
			slog.String("total_size", humanize.IBytes(uint64(totalFileSize))),
		)
	}

	return form, nil
}

// readField はテキストフィールドを読み込みvaluesに追加する。
func (p *Parser) readField(part *multipart.Part, values FormValues, remaining int64) (int64, error) {
	data, err := io.ReadAll(io.LimitReader(part, remaining+1))
	if err != nil {
		return 0, classifyReadError(err)
	}
	if int64(len(data)) > remaining {
		return 0, fmt.Errorf("%w: fields exceed %s", ErrMalformedForm, humanize.IBytes(uint64(p.limits.MaxFieldsSize)))
	}

	name := part.FormName()
	values[name] = append(values[name], string(data))
	return int64(len(data)), nil
}

// readFile はファイルパートを一時ファイルに書き出す。
// フィルタで除外した場合は(nil, 0, nil)を返す。
func (p *Parser) readFile(part *multipart.Part, set *TempSet, accepted int, remaining int64) (*model.UploadedFile, int64, error) {
	filename := part.FileName()
	mimeType := declaredMimeType(part)

	if part.FormName() != AttachmentField || !p.accept(filename, mimeType) {
		p.logger.Debug("添付ファイルを除外しました",
			slog.String("field", part.FormName()),
			slog.String("filename", filename),
			slog.String("mime_type", mimeType),
		)
		if _, err := io.Copy(io.Discard, part); err != nil {
			return nil, 0, classifyReadError(err)
		}
		return nil, 0, nil
	}

	if accepted+1 > p.limits.MaxFiles {
		return nil, 0, ErrTooManyFiles
	}

	f, err := set.Create(strings.ToLower(Ext(filename)))
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(part, remaining+1))
	if err != nil {
		return nil, 0, classifyReadError(err)
	}
	if n > remaining {
		return nil, 0, ErrTotalSizeExceeded
	}

	return &model.UploadedFile{
		OriginalName: filename,
		MimeType:     mimeType,
		SizeBytes:    n,
		TempPath:     f.Name(),
	}, n, nil
}

// accept は解析時のフィルタ。申告MIMEタイプがあれば許可リストと照合し、
// ファイル名があれば拡張子を許可リストと照合する。
func (p *Parser) accept(filename, mimeType string) bool {
	if mimeType != "" && !IsAllowedMimeType(mimeType) {
		return false
	}
	if filename != "" && !IsAllowedExtension(Ext(filename)) {
		return false
	}
	return true
}

// isFilePart はContent-Dispositionにfilenameパラメータを持つパートかを判定する。
// ファイル未選択で送られるfilename=""のパートもファイルとして扱う。
func isFilePart(part *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

// declaredMimeType はパートのContent-Typeからパラメータを除いたメディアタイプを返す。
func declaredMimeType(part *multipart.Part) string {
	ct := part.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return strings.ToLower(mediaType)
}

// classifyReadError はボディ読み取り中のエラーを分類する。
// http.MaxBytesReaderの上限超過は合計サイズ超過として扱う。
func classifyReadError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return ErrTotalSizeExceeded
	}
	return fmt.Errorf("%w: %v", ErrMalformedForm, err)
}
