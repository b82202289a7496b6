//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"drive-media-compressor/application/compression"
	"drive-media-compressor/application/session"
	"drive-media-compressor/cmd"
	"drive-media-compressor/domain/transfer"
	"drive-media-compressor/infrastructure/drive"
	"drive-media-compressor/infrastructure/ffmpeg"
	"drive-media-compressor/infrastructure/filesystem"
	imgcompress "drive-media-compressor/infrastructure/imaging"
	"drive-media-compressor/infrastructure/metrics"
	"drive-media-compressor/infrastructure/retry"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	googledrive "google.golang.org/api/drive/v3"
)

// halvingRunner stands in for ffmpeg: it writes the first half of the input
// to the output path.
type halvingRunner struct{}

func (halvingRunner) Run(ctx context.Context, name string, args ...string) error {
	var in string
	for i, a := range args {
		if a == "-i" && i+1 < len(args) {
			in = args[i+1]
		}
	}
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	return os.WriteFile(args[len(args)-1], data[:len(data)/2], 0600)
}

func (halvingRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	return []byte("ffmpeg version test"), nil
}

// pipelineContext holds one scenario's Drive, session, and command results
type pipelineContext struct {
	tempDir   string
	service   *memoryDriveService
	sess      *session.Session
	output    *bytes.Buffer
	originals map[string][]byte // by name, remote and local
	local     []string
	summary   *transfer.Summary
	err       error
}

var SharedPipelineContext = &pipelineContext{}

func InitializePipelineScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedPipelineContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "pipeline-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.service = newMemoryDriveService()
		testCtx.sess = nil
		testCtx.output = &bytes.Buffer{}
		testCtx.originals = make(map[string][]byte)
		testCtx.local = nil
		testCtx.summary = nil
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.sess != nil {
			testCtx.sess.Close()
		}
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	// Given
	ctx.Step(`^a Drive folder "([^"]*)" containing:$`, testCtx.aDriveFolderContaining)
	ctx.Step(`^the local files:$`, testCtx.theLocalFiles)
	ctx.Step(`^the Drive credential has expired$`, testCtx.theDriveCredentialHasExpired)
	ctx.Step(`^the Drive credential expires after the folder is listed$`, testCtx.theDriveCredentialExpiresAfterListing)
	ctx.Step(`^uploads named "([^"]*)" fail$`, testCtx.uploadsNamedFail)
	ctx.Step(`^downloads of "([^"]*)" are denied$`, testCtx.downloadsAreDenied)
	ctx.Step(`^"([^"]*)" has a thumbnail$`, testCtx.hasAThumbnail)

	// When
	ctx.Step(`^I compress and replace "([^"]*)" in "([^"]*)"$`, testCtx.iCompressAndReplace)
	ctx.Step(`^I compress and upload copies of "([^"]*)" in "([^"]*)"$`, testCtx.iCompressAndUploadCopies)
	ctx.Step(`^I upload the local files to "([^"]*)"$`, testCtx.iUploadTheLocalFiles)
	ctx.Step(`^I list folder "([^"]*)"$`, testCtx.iListFolder)
	ctx.Step(`^I delete "([^"]*)" from "([^"]*)" answering "(yes|no)"$`, testCtx.iDeleteAnswering)
	ctx.Step(`^I preview "([^"]*)" in "([^"]*)"$`, testCtx.iPreview)

	// Then
	ctx.Step(`^the batch should report (\d+) succeeded and (\d+) failed$`, testCtx.theBatchShouldReport)
	ctx.Step(`^the batch should have saved bytes$`, testCtx.theBatchShouldHaveSavedBytes)
	ctx.Step(`^the batch should be stopped for reconnect$`, testCtx.theBatchShouldBeStoppedForReconnect)
	ctx.Step(`^the listing of "([^"]*)" should be "([^"]*)"$`, testCtx.theListingShouldBe)
	ctx.Step(`^Drive folder "([^"]*)" should hold "([^"]*)"$`, testCtx.driveFolderShouldHold)
	ctx.Step(`^"([^"]*)" should have been uploaded smaller than "([^"]*)"$`, testCtx.shouldHaveBeenUploadedSmaller)
	ctx.Step(`^"([^"]*)" should have been uploaded unchanged from "([^"]*)"$`, testCtx.shouldHaveBeenUploadedUnchanged)
	ctx.Step(`^nothing should have been uploaded$`, testCtx.nothingShouldHaveBeenUploaded)
	ctx.Step(`^"([^"]*)" should have been deleted$`, testCtx.shouldHaveBeenDeleted)
	ctx.Step(`^nothing should have been deleted$`, testCtx.nothingShouldHaveBeenDeleted)
	ctx.Step(`^the pipeline output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	ctx.Step(`^the pipeline command should succeed$`, testCtx.theCommandShouldSucceed)
	ctx.Step(`^the pipeline command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
}

// session builds the production wiring on top of the in-memory Drive
func (p *pipelineContext) session() (*session.Session, error) {
	if p.sess != nil {
		return p.sess, nil
	}
	client, err := drive.NewClient(context.Background(), nil,
		drive.WithDriveService(p.service),
		drive.WithRetry(retry.Config{MaxAttempts: 1}),
	)
	if err != nil {
		return nil, err
	}
	recorder := metrics.NewRecorder()
	router := compression.NewRouter(
		imgcompress.NewCompressor(),
		ffmpeg.NewCompressor(ffmpeg.WithCommandRunner(halvingRunner{}), ffmpeg.WithTempDir(p.tempDir)),
		compression.WithFailureRecorder(recorder),
	)
	p.sess = session.New(session.Dependencies{
		Gateway:    client,
		Compressor: router,
		LocalFiles: filesystem.NewChecker(),
		Recorder:   recorder,
		Output:     p.output,
	})
	return p.sess, nil
}

// content generates file bytes for a kind of fixture
func content(kind string) (data []byte, mimeType string, err error) {
	switch kind {
	case "large jpeg":
		rng := rand.New(rand.NewSource(42))
		img := image.NewNRGBA(image.Rect(0, 0, 2200, 1400))
		for y := 0; y < 1400; y++ {
			for x := 0; x < 2200; x++ {
				img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(rng.Intn(256)), A: 255})
			}
		}
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(100)); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	case "small png":
		img := imaging.New(16, 16, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "mp4":
		data := make([]byte, 200*1024)
		rand.New(rand.NewSource(7)).Read(data)
		return data, "video/mp4", nil
	case "pdf":
		return append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), 100*1024)...), "application/pdf", nil
	case "folder":
		return nil, "application/vnd.google-apps.folder", nil
	default:
		return nil, "", fmt.Errorf("unknown fixture kind %q", kind)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// --- Given ---

func (p *pipelineContext) aDriveFolderContaining(folderID string, table *godog.Table) error {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		id, name, kind := row.Cells[0].Value, row.Cells[1].Value, row.Cells[2].Value
		data, mimeType, err := content(kind)
		if err != nil {
			return err
		}
		// Earlier rows are newer so the listing keeps table order
		f := &googledrive.File{
			Id:           id,
			Name:         name,
			MimeType:     mimeType,
			Size:         int64(len(data)),
			ModifiedTime: base.Add(-time.Duration(i) * time.Hour).Format(time.RFC3339),
		}
		p.service.add(folderID, f, data)
		p.originals[name] = data
	}
	return nil
}

func (p *pipelineContext) theLocalFiles(table *godog.Table) error {
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		name, kind := row.Cells[0].Value, row.Cells[1].Value
		data, _, err := content(kind)
		if err != nil {
			return err
		}
		path := filepath.Join(p.tempDir, name)
		if err := os.WriteFile(path, data, 0644); err != nil {
			return err
		}
		p.originals[name] = data
		p.local = append(p.local, path)
	}
	return nil
}

func (p *pipelineContext) theDriveCredentialHasExpired() error {
	p.service.expired = true
	return nil
}

func (p *pipelineContext) theDriveCredentialExpiresAfterListing() error {
	p.service.expireAfterList = true
	return nil
}

func (p *pipelineContext) uploadsNamedFail(name string) error {
	p.service.failName[name] = true
	return nil
}

func (p *pipelineContext) downloadsAreDenied(id string) error {
	p.service.denied[id] = true
	return nil
}

func (p *pipelineContext) hasAThumbnail(id string) error {
	link := "https://lh3.googleusercontent.com/thumb/" + id
	for _, files := range p.service.folders {
		for _, f := range files {
			if f.Id == id {
				f.ThumbnailLink = link
				p.service.links[link] = []byte("thumbnail-bytes")
				return nil
			}
		}
	}
	return fmt.Errorf("file %q not found", id)
}

// --- When ---

func (p *pipelineContext) runBatch(op transfer.Operation, folderID string, inputs []string) error {
	sess, err := p.session()
	if err != nil {
		return err
	}
	p.summary, p.err = cmd.RunBatchWithDependencies(context.Background(), sess, op, folderID, inputs, p.output)
	return nil
}

func (p *pipelineContext) iCompressAndReplace(ids, folderID string) error {
	return p.runBatch(transfer.OperationReplace, folderID, splitList(ids))
}

func (p *pipelineContext) iCompressAndUploadCopies(ids, folderID string) error {
	return p.runBatch(transfer.OperationUploadNew, folderID, splitList(ids))
}

func (p *pipelineContext) iUploadTheLocalFiles(folderID string) error {
	return p.runBatch(transfer.OperationLocal, folderID, p.local)
}

func (p *pipelineContext) iListFolder(folderID string) error {
	sess, err := p.session()
	if err != nil {
		return err
	}
	p.err = cmd.RunListWithDependencies(context.Background(), sess, folderID, p.output)
	return nil
}

func (p *pipelineContext) iDeleteAnswering(ids, folderID, answer string) error {
	sess, err := p.session()
	if err != nil {
		return err
	}
	prompter := NewMockPrompter(nil, []bool{answer == "yes"})
	p.err = cmd.RunDeleteWithDependencies(context.Background(), sess, prompter, folderID, splitList(ids), false, p.output)
	return nil
}

func (p *pipelineContext) iPreview(id, folderID string) error {
	sess, err := p.session()
	if err != nil {
		return err
	}
	out := filepath.Join(p.tempDir, "preview.bin")
	p.err = cmd.RunPreviewWithDependencies(context.Background(), sess, folderID, id, out, p.output)
	return nil
}

// --- Then ---

func (p *pipelineContext) theBatchShouldReport(succeeded, failed int) error {
	if p.summary == nil {
		return fmt.Errorf("no batch summary (error: %v)", p.err)
	}
	if p.summary.Succeeded != succeeded || p.summary.Failed != failed {
		return fmt.Errorf("expected %d succeeded and %d failed, got %d and %d (failures: %+v)\noutput:\n%s",
			succeeded, failed, p.summary.Succeeded, p.summary.Failed, p.summary.Failures, p.output.String())
	}
	return nil
}

func (p *pipelineContext) theBatchShouldHaveSavedBytes() error {
	if p.summary == nil || p.summary.BytesSaved <= 0 {
		return fmt.Errorf("expected saved bytes, got summary %+v", p.summary)
	}
	return nil
}

func (p *pipelineContext) theBatchShouldBeStoppedForReconnect() error {
	if p.summary == nil || !p.summary.Aborted {
		return fmt.Errorf("expected an aborted batch, got %+v", p.summary)
	}
	return nil
}

func (p *pipelineContext) theListingShouldBe(folderID, names string) error {
	sess, err := p.session()
	if err != nil {
		return err
	}
	var got []string
	for _, f := range sess.Registry().Listing(folderID) {
		got = append(got, f.Name)
	}
	want := splitList(names)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected listing %v, got %v", want, got)
	}
	return nil
}

func (p *pipelineContext) driveFolderShouldHold(folderID, names string) error {
	got := p.service.names(folderID)
	want := splitList(names)
	sort.Strings(got)
	sort.Strings(want)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("expected Drive folder %q to hold %v, got %v", folderID, want, got)
	}
	return nil
}

func (p *pipelineContext) shouldHaveBeenUploadedSmaller(name, original string) error {
	u, ok := p.service.upload(name)
	if !ok {
		return fmt.Errorf("%q was not uploaded", name)
	}
	if len(u.Data) >= len(p.originals[original]) {
		return fmt.Errorf("expected %q (%d bytes) to be smaller than %q (%d bytes)", name, len(u.Data), original, len(p.originals[original]))
	}
	return nil
}

func (p *pipelineContext) shouldHaveBeenUploadedUnchanged(name, original string) error {
	u, ok := p.service.upload(name)
	if !ok {
		return fmt.Errorf("%q was not uploaded", name)
	}
	if !bytes.Equal(u.Data, p.originals[original]) {
		return fmt.Errorf("expected %q to be uploaded byte for byte", name)
	}
	return nil
}

func (p *pipelineContext) nothingShouldHaveBeenUploaded() error {
	if len(p.service.uploads) != 0 {
		return fmt.Errorf("expected no uploads, got %d", len(p.service.uploads))
	}
	return nil
}

func (p *pipelineContext) shouldHaveBeenDeleted(id string) error {
	for _, d := range p.service.deleted {
		if d == id {
			return nil
		}
	}
	return fmt.Errorf("expected %q to be deleted, deleted: %v", id, p.service.deleted)
}

func (p *pipelineContext) nothingShouldHaveBeenDeleted() error {
	if len(p.service.deleted) != 0 {
		return fmt.Errorf("expected no deletions, got %v", p.service.deleted)
	}
	return nil
}

func (p *pipelineContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(p.output.String(), expected) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", expected, p.output.String())
	}
	return nil
}

func (p *pipelineContext) theCommandShouldSucceed() error {
	if p.err != nil {
		return fmt.Errorf("expected success, got: %v\noutput:\n%s", p.err, p.output.String())
	}
	return nil
}

func (p *pipelineContext) theCommandShouldFailWith(expected string) error {
	if p.err == nil {
		return fmt.Errorf("expected error containing %q, got success", expected)
	}
	if !strings.Contains(p.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, p.err)
	}
	return nil
}
