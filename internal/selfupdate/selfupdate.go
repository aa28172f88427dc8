package selfupdate

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/mod/semver"
)

const (
	repoOwner  = "tickle-go"
	repoName   = "tickle-go"
	binaryName = "tickle"
	apiURL     = "https://api.github.com/repos/%s/%s/releases/latest"
)

var ErrUpToDate = errors.New("already up to date")

type gitHubRelease struct {
	TagName string `json:"tag_name"`
	Assets  []struct {
		Name        string `json:"name"`
		DownloadURL string `json:"browser_download_url"`
		Digest      string `json:"digest"`
	} `json:"assets"`
}

// Updater replaces the running binary with the latest GitHub release.
type Updater struct {
	ReleaseURL string
	AssetName  string
	BinaryName string
	// Executable is the file to replace; empty means os.Executable.
	Executable string
	Client     *http.Client
	Out        io.Writer
	Logger     zerolog.Logger
	// Confirm asks whether the previous binary may be deleted.
	Confirm func(prompt string) bool
}

func New(logger zerolog.Logger) *Updater {
	return &Updater{
		ReleaseURL: fmt.Sprintf(apiURL, repoOwner, repoName),
		AssetName:  fmt.Sprintf("%s_%s_%s.tar.gz", repoName, runtime.GOOS, runtime.GOARCH),
		BinaryName: binaryName,
		Client:     http.DefaultClient,
		Out:        os.Stdout,
		Logger:     logger,
		Confirm:    askForConfirmation,
	}
}

// Run updates to the latest release. It returns ErrUpToDate when the current
// version is not older than the latest one.
func (u *Updater) Run(ctx context.Context, currentVersion string, isDryRun, isForce bool) error {
	if !strings.HasPrefix(currentVersion, "v") {
		currentVersion = "v" + currentVersion
	}

	u.Logger.Info().Str("url", u.ReleaseURL).Msg("Checking for new versions...")
	release, err := u.getLatestReleaseInfo(ctx)
	if err != nil {
		return fmt.Errorf("could not get latest release info: %w", err)
	}

	latestVersion := release.TagName
	if !semver.IsValid(currentVersion) || !semver.IsValid(latestVersion) {
		return fmt.Errorf("invalid version format. Current: %s, Latest: %s", currentVersion, release.TagName)
	}

	if semver.Compare(currentVersion, latestVersion) >= 0 {
		fmt.Fprintf(u.Out, "Current version (%s) is already the latest.\n", currentVersion)
		return ErrUpToDate
	}

	fmt.Fprintf(u.Out, "A new version %s is available! Current version is %s\n", latestVersion, currentVersion)

	var assetURL, expectedChecksum string
	for _, asset := range release.Assets {
		if asset.Name == u.AssetName {
			assetURL = asset.DownloadURL
			if strings.HasPrefix(asset.Digest, "sha256:") {
				expectedChecksum = strings.TrimPrefix(asset.Digest, "sha256:")
			}
		}
	}

	if assetURL == "" {
		return fmt.Errorf("could not find asset for %s in release %s", u.AssetName, latestVersion)
	}
	if expectedChecksum == "" {
		return fmt.Errorf("could not find checksum for %s in release %s", u.AssetName, latestVersion)
	}

	u.Logger.Info().Str("asset", u.AssetName).Msg("Downloading new binary")
	tmpFile, downloadedChecksum, err := u.downloadFile(ctx, assetURL)
	if err != nil {
		return fmt.Errorf("failed to download binary: %w", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	if downloadedChecksum != expectedChecksum {
		return fmt.Errorf("checksum mismatch! Expected %s, got %s", expectedChecksum, downloadedChecksum)
	}
	u.Logger.Info().Msg("Checksum verified")

	extractedBinaryPath, err := u.extractBinaryFromTarball(tmpFile.Name())
	if err != nil {
		return fmt.Errorf("failed to extract binary: %w", err)
	}
	defer os.Remove(extractedBinaryPath)

	if isDryRun {
		fmt.Fprintln(u.Out, "\nDry run successful. Binary downloaded and verified.")
		return nil
	}

	fmt.Fprintln(u.Out, "Replacing current executable...")
	return u.replaceExecutable(extractedBinaryPath, isForce)
}

func (u *Updater) bar(size int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(size,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(u.Out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionClearOnFinish(),
	)
}

func (u *Updater) extractBinaryFromTarball(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("could not open tarball: %w", err)
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("could not create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("error reading tar header: %w", err)
		}

		if header.Typeflag == tar.TypeReg && header.Name == u.BinaryName {
			outFile, err := os.CreateTemp("", "tickle-update-extracted-")
			if err != nil {
				return "", fmt.Errorf("could not create temp file for extracted binary: %w", err)
			}

			if _, err := io.Copy(io.MultiWriter(outFile, u.bar(header.Size, "Extracting binary")), tr); err != nil {
				outFile.Close()
				os.Remove(outFile.Name())
				return "", fmt.Errorf("could not extract binary: %w", err)
			}
			outFile.Close()

			return outFile.Name(), nil
		}
	}

	return "", errors.New("binary not found in tarball")
}

func (u *Updater) getLatestReleaseInfo(ctx context.Context) (*gitHubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.ReleaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status from GitHub API: %s", resp.Status)
	}

	var release gitHubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, err
	}

	return &release, nil
}

func (u *Updater) downloadFile(ctx context.Context, url string) (f *os.File, sha256sum string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpFile, err := os.CreateTemp("", "tickle-update-")
	if err != nil {
		return nil, "", err
	}

	hasher := sha256.New()
	multiWriter := io.MultiWriter(tmpFile, u.bar(resp.ContentLength, "Downloading"), hasher)
	if _, err = io.Copy(multiWriter, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return nil, "", err
	}

	return tmpFile, hex.EncodeToString(hasher.Sum(nil)), nil
}

func (u *Updater) client() *http.Client {
	if u.Client == nil {
		return http.DefaultClient
	}
	return u.Client
}

func askForConfirmation(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("%s [y/N]: ", prompt)
	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Printf("Error reading input: %v. Defaulting to 'no'.\n", err)
		return false
	}

	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y"
}

// use copy instead of rename, since rename can fail across different file systems.
func (u *Updater) copyFile(src, dst string) error {
	sourceFileStat, err := os.Stat(src)
	if err != nil {
		return err
	}

	if !sourceFileStat.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", src)
	}

	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	destination, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destination.Close()

	if _, err = io.Copy(io.MultiWriter(destination, u.bar(sourceFileStat.Size(), "Copying file")), source); err != nil {
		return err
	}

	return destination.Sync()
}

func (u *Updater) replaceExecutable(sourcePath string, isForce bool) error {
	exe := u.Executable
	if exe == "" {
		var err error
		if exe, err = os.Executable(); err != nil {
			return errors.New("could not locate executable path")
		}
	}

	exeOld := exe + ".old"
	if err := os.Rename(exe, exeOld); err != nil {
		return fmt.Errorf("failed to rename current executable: %w", err)
	}

	if err := u.copyFile(sourcePath, exe); err != nil {
		if rbErr := os.Rename(exeOld, exe); rbErr != nil {
			return fmt.Errorf("failed to copy new executable to final path AND failed to roll back: %w", err)
		}
		return fmt.Errorf("failed to copy new executable: %w", err)
	}

	if err := os.Chmod(exe, 0755); err != nil {
		if rbErr := os.Rename(exeOld, exe); rbErr != nil {
			return fmt.Errorf("failed to set permissions on new executable AND failed to roll back: %w", err)
		}
		return fmt.Errorf("failed to set permissions on new executable: %w", err)
	}

	deleteOld := isForce
	if !isForce && u.Confirm != nil {
		deleteOld = u.Confirm("Delete old binary?")
	}

	if deleteOld {
		if err := os.Remove(exeOld); err != nil {
			u.Logger.Warn().Err(err).Msgf("Failed to remove old binary, you may need to remove it manually: %s", exeOld)
		} else {
			fmt.Fprintln(u.Out, "Old binary removed.")
		}
	} else {
		fmt.Fprintf(u.Out, "Successfully updated. Old version is at %s\n", exeOld)
	}

	return nil
}
