// Package sources holds the remote collaborators of the transcript pipeline:
// URL resolution, YouTube captions (direct and relayed), audio retrieval and
// speech-to-text.
//
// The YouTube code is split across files by responsibility:
//
//	youtube_videoref.go   URL to VideoRef resolution (pure, no I/O)
//	youtube_innertube.go  watch-page and Innertube types, constants and HTTP primitives
//	youtube_captions.go   caption track listing, selection and timedtext fetching
//	youtube_audio.go      audio-only stream selection and temp-file download
//	youtube_ytdlp.go      yt-dlp audio backend
//
// Speech-to-text for downloaded audio lives in whisper.go.
package sources
