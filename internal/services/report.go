package services

import "fmt"

// renderReport produces the styled markdown/HTML analysis report. Image
// references use the relative naming convention the archive collaborator
// expects; the embedding variant rewrites them afterwards.
func renderReport(analysisText, baseName string) string {
	return fmt.Sprintf(`# Palisades Fire Analysis Report

## Before and After Images

<style>
.container {
    display: flex;
    gap: 20px;
    margin: 20px 0;
    height: 600px;
}
.left-panel {
    flex: 0 0 40%%;
    display: flex;
    flex-direction: column;
    gap: 10px;
}
.right-panel {
    flex: 1 0 auto;
}
.image-box {
    width: 100%%;
    border: 1px solid #ddd;
    border-radius: 8px;
    overflow: hidden;
}
.left-panel .image-box {
    flex: 1;
}
.right-panel .image-box {
    flex: 1;
    height: 100%%;
    width: 100%%;
}
.image-box img {
    width: 100%%;
    height: 100%%;
    object-fit: cover;
    display: block;
}
.image-title {
    padding: 10px;
    background: #f5f5f5;
    font-weight: bold;
    text-align: center;
}
</style>

<div class="container">
    <div class="left-panel">
        <div class="image-box">
            <div class="image-title">Before Image</div>
            <img src="before_image_%[1]s.png" alt="Before Image">
        </div>
        <div class="image-box">
            <div class="image-title">After Image</div>
            <img src="after_image_%[1]s.png" alt="After Image">
        </div>
    </div>
    <div class="right-panel">
        <div class="image-box">
            <div class="image-title">Compared Image</div>
            <img src="compared_image_%[1]s.png" alt="Compared Image">
        </div>
    </div>
</div>

## Analysis Results

%[2]s

---
_End of Report_
`, baseName, analysisText)
}
