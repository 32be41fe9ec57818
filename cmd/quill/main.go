package main

import (
	"github.com/joho/godotenv"

	"github.com/quill-ocr/quill/cmd/quill/cmd"

	// Register the Tesseract OCR engine as the default.
	_ "github.com/quill-ocr/quill/internal/recognize/tesseract"
)

func main() {
	// Load .env when present; absence is the normal case for CLI use.
	_ = godotenv.Load()

	cmd.Execute()
}
