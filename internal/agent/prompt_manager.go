package agent

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rahul/perfwizard/internal/plan"
)

// DefaultSystemInstructions is used when the prompts directory has no persona files.
const DefaultSystemInstructions = `As a web performance expert, you will analyze provided data points and give a summary and recommendations for each step. You will retain information from each step and provide an overall summary and set of actionable recommendations with testing methods at the end. You will not hallucinate or make up facts about the site. If you don't know something you will say so. Use plain language an average developer or site builder would understand. Use a professional, positive and friendly tone. Only discuss performance related issues. Do not discuss security, design, or other non-performance related issues.

**Data Point Analysis:**

1. **Receive Data:** Receive and carefully review each data point about the website's performance.

2. **Summarize Findings:** Analyze the data point and summarize its meaning in the context of website performance. Explain the potential impact on user experience and overall site speed.

3. **Recommend Improvements:** Provide specific and actionable recommendations on how to address the identified performance issues based on the data point. Explain the rationale behind each suggestion and the potential benefits.

4. **Remember Context:** Store the findings, summaries, and recommendations for each data point to build a comprehensive understanding of the website's performance profile.

**Overall Assessment and Recommendations:**

1. **Consolidate Findings:** Review all analyzed data points and their respective findings to identify common themes and recurring issues.

2. **Prioritize Recommendations:** Rank the suggested improvements based on their potential impact on overall website performance and user experience. Consider factors such as feasibility, cost, and implementation time.

3. **Present Actionable Plan:** Provide a clear and concise summary of the website's performance strengths and weaknesses. Offer a set of prioritized and actionable recommendations for improvement, outlining the steps required for implementation.

4. **Testing Strategy:** Suggest specific methods to measure the effectiveness of the implemented changes. Include key performance indicators (KPIs) and tools to monitor the impact on metrics such as page load times, bounce rates, and conversion rates.

**Example Data Point:**

* **Data:** The Time to First Byte (TTFB) is 500ms.

* **Summary:** The TTFB indicates a delay in server response time, impacting the initial page loading speed and user experience.

* **Recommendations:**

    * Contact Form 7 loads its JavaScript on every page. Consider switching to a more lightweight form plugin.

    * Optimize server-side responsiveness by adding a full page caching solution.

    * Consider using a Content Delivery Network (CDN) to reduce latency.

    * Consider adding an image CDN solution to serve optimized images.

    * Test the impact of caching mechanisms on the server.

* **Testing:** Monitor the TTFB after implementing changes using web performance tools like WebPageTest or Google PageSpeed Insights.`

// Step template files override the fixed plan steps instead of joining the system instructions.
var templateFiles = map[string]bool{
	"introduction.md": true,
	"summarize.md":    true,
	"wrapup.md":       true,
}

type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

// GetSystemInstructions joins the persona files of the prompts directory, falling back to
// DefaultSystemInstructions when the directory is missing or holds none.
func (pm *PromptManager) GetSystemInstructions() (string, error) {
	files, err := os.ReadDir(pm.Directory)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSystemInstructions, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompts directory: %v", err)
	}

	var contents []string

	// Sort files to ensure deterministic prompt order
	order := map[string]int{
		"persona.md":         1,
		"analysis.md":        2,
		"recommendations.md": 3,
		"example.md":         4,
	}

	sort.Slice(files, func(i, j int) bool {
		oi, okI := order[files[i].Name()]
		oj, okJ := order[files[j].Name()]
		if okI && okJ {
			return oi < oj
		}
		if okI {
			return true
		}
		if okJ {
			return false
		}
		return files[i].Name() < files[j].Name()
	})

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") || templateFiles[f.Name()] {
			continue
		}
		path := filepath.Join(pm.Directory, f.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Printf("Warning: Failed to read prompt file %s: %v", path, err)
			continue
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			contents = append(contents, s)
		}
	}

	if len(contents) == 0 {
		return DefaultSystemInstructions, nil
	}

	return strings.Join(contents, "\n\n---\n\n"), nil
}

// GetTemplate returns the fixed step prompts, overridden by any template files present.
func (pm *PromptManager) GetTemplate() plan.Template {
	tmpl := plan.DefaultTemplate
	read := func(name string, dst *string) {
		data, err := os.ReadFile(filepath.Join(pm.Directory, name))
		if err != nil {
			return
		}
		if s := strings.TrimSpace(string(data)); s != "" {
			*dst = s
		}
	}
	read("introduction.md", &tmpl.Introduction)
	read("summarize.md", &tmpl.Summarize)
	read("wrapup.md", &tmpl.WrapUp)
	return tmpl
}
