package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adammathes/wikicli/wikimd"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"
)

var unsafeNameChars = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_",
	`"`, "_", "<", "_", ">", "_", "|", "_",
)

// safeFilename replaces characters that are invalid in file names on
// common filesystems and normalises the result to NFC.
func safeFilename(name string) string {
	return norm.NFC.String(unsafeNameChars.Replace(name))
}

// localImageName derives the file name an image is saved under. Wiki
// attachments (/attachments/{page}/{file}) keep their owning page id;
// anything else is prefixed with the current page id.
func localImageName(rawURL, pageID string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return pageID + "_image"
	}
	parts := strings.Split(u.Path, "/")
	for i, p := range parts {
		if p == "attachments" && i+2 < len(parts) && parts[i+2] != "" {
			return parts[i+1] + "_" + cleanSegment(parts[i+2])
		}
	}
	last := cleanSegment(parts[len(parts)-1])
	if last == "" {
		last = "image"
	}
	return pageID + "_" + last
}

func cleanSegment(seg string) string {
	if dec, err := url.PathUnescape(seg); err == nil {
		seg = dec
	}
	return safeFilename(strings.ReplaceAll(seg, " ", "_"))
}

// withExtension adds an extension for the sniffed MIME type when name has
// none. Unknown types fall back to .png.
func withExtension(name, mime string) string {
	if path.Ext(name) != "" {
		return name
	}
	ext := ".png"
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}
	return name + ext
}

// uniqueName returns name, or name with a -2, -3, ... suffix when it is
// already taken, and records the result.
func uniqueName(name string, used map[string]bool) string {
	if !used[name] {
		used[name] = true
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := stem + "-" + strconv.Itoa(i) + ext
		if !used[candidate] {
			used[candidate] = true
			return candidate
		}
	}
}

// fetchedImage is the outcome of one image download.
type fetchedImage struct {
	img  wikimd.Image
	data []byte
	mime string
	err  error
}

// downloadImages fetches every image with at most limit requests in
// flight. Individual failures are recorded, never returned.
func downloadImages(ctx context.Context, client *wikiClient, images []wikimd.Image, limit int) []fetchedImage {
	results := make([]fetchedImage, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, img := range images {
		g.Go(func() error {
			data, mime, err := client.binary(gctx, img.URL)
			results[i] = fetchedImage{img: img, data: data, mime: mime, err: err}
			return nil
		})
	}
	g.Wait()
	return results
}

// savedPage describes a page written to the cache directory.
type savedPage struct {
	Title    string
	PageID   string
	Dir      string
	File     string
	Markdown string
	Images   map[string]string // remote URL -> file name inside Dir
}

// savePage converts markup, downloads its images into the page directory
// and writes the Markdown next to them. Images that fail to download keep
// their remote URL.
func savePage(ctx context.Context, client *wikiClient, cacheDir string, concurrency int, markup string, opts optimizeOpts) (*savedPage, error) {
	base := wikimd.Options{BaseOrigin: client.origin()}
	res, err := wikimd.ConvertDocument(markup, base)
	if err != nil {
		return nil, err
	}

	title := res.Title
	if title == "" {
		title = "Untitled"
	}
	pageID := res.PageID
	if pageID == "" {
		pageID = "unknown"
	}

	dir := filepath.Join(cacheDir, safeFilename(title+"-"+pageID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	local := map[string]string{}
	used := map[string]bool{}
	for _, f := range downloadImages(ctx, client, res.Images, concurrency) {
		if f.err != nil {
			fmt.Fprintf(logOut, "Warning: image %s: %v (keeping remote URL)\n", f.img.URL, f.err)
			continue
		}
		data, name := f.data, withExtension(localImageName(f.img.URL, pageID), f.mime)
		if optimized, ok := optimizeImage(data, f.mime, opts); ok {
			data = optimized
			name = strings.TrimSuffix(name, path.Ext(name)) + ".jpg"
		}
		name = uniqueName(name, used)
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
			fmt.Fprintf(logOut, "Warning: saving %s: %v (keeping remote URL)\n", name, err)
			continue
		}
		local[f.img.URL] = name
		fmt.Fprintf(logOut, "Saved image %s (%s)\n", name, humanSize(int64(len(data))))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	withLocal := base
	withLocal.ImageTarget = func(u string) string { return local[u] }
	md, err := wikimd.Convert(markup, withLocal)
	if err != nil {
		return nil, err
	}

	file := filepath.Join(dir, safeFilename(title)+".md")
	if err := os.WriteFile(file, []byte(md), 0o644); err != nil {
		return nil, fmt.Errorf("writing markdown: %w", err)
	}

	return &savedPage{
		Title:    title,
		PageID:   pageID,
		Dir:      dir,
		File:     file,
		Markdown: md,
		Images:   local,
	}, nil
}
