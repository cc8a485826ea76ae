/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package bingo

import (
	"net/url"
	"strings"
)

const (
	AttachmentImage = "image"
	AttachmentVideo = "video"

	DefaultAttachmentHost = "imgcdn.dev"

	maxAttachmentName = 120
)

var imageExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"avif": {}, "bmp": {}, "heic": {}, "heif": {}, "apng": {},
}

var videoExtensions = map[string]struct{}{
	"mp4": {}, "webm": {}, "mov": {}, "m4v": {}, "ogg": {},
	"ogv": {}, "avi": {}, "mkv": {}, "gifv": {},
}

// Attachment is a validated image or video link shown alongside a chat message.
type Attachment struct {
	URL  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// AttachmentPolicy accepts https links on Host or any of its subdomains.
type AttachmentPolicy struct {
	Host string
}

// Sanitize validates a client-supplied attachment. The type is taken from
// declaredType when it names image or video, otherwise from the URL's
// file extension.
func (p AttachmentPolicy) Sanitize(rawURL, declaredType, name string) (Attachment, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Attachment{}, false
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return Attachment{}, false
	}

	allowed := strings.ToLower(p.Host)
	if allowed == "" {
		allowed = DefaultAttachmentHost
	}

	host := strings.ToLower(u.Hostname())
	if host != allowed && !strings.HasSuffix(host, "."+allowed) {
		return Attachment{}, false
	}

	var kind string
	switch declaredType {
	case AttachmentImage, AttachmentVideo:
		kind = declaredType
	default:
		ext := FileExtension(u.Path)
		switch {
		case isVideoExtension(ext):
			kind = AttachmentVideo
		case ext == "" || isImageExtension(ext):
			kind = AttachmentImage
		default:
			return Attachment{}, false
		}
	}

	name = strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(name))

	return Attachment{
		URL:  u.String(),
		Type: kind,
		Name: truncate(name, maxAttachmentName),
	}, true
}

// FileExtension returns the lowercased text after the last dot anywhere in p,
// slashes included, or "" if there is none.
func FileExtension(p string) string {
	i := strings.LastIndex(p, ".")
	if i == -1 || i == len(p)-1 {
		return ""
	}
	return strings.ToLower(p[i+1:])
}

// IsMediaExtension reports whether ext is a known image or video extension.
func IsMediaExtension(ext string) bool {
	return isImageExtension(ext) || isVideoExtension(ext)
}

func isImageExtension(ext string) bool {
	_, ok := imageExtensions[ext]
	return ok
}

func isVideoExtension(ext string) bool {
	_, ok := videoExtensions[ext]
	return ok
}
