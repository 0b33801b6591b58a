package config

import "github.com/StanHuanng/anthropo-reader/internal/ingest"

const (
	scutBase      = "https://jw.scut.edu.cn"
	newsSourceID  = "news_international"
	newsCategory  = "international"
	newsTable     = "news"
	noticeTable   = "school_notices"
	projectsTable = "articles"
)

// DefaultSources returns the built-in source table used when the config file defines none.
func DefaultSources() []ingest.SourceConfig {
	feed := func(key, name, url string) ingest.SourceConfig {
		return ingest.SourceConfig{
			Key:           key,
			Name:          name,
			Category:      newsCategory,
			Kind:          ingest.KindFeed,
			URL:           url,
			Collection:    newsTable,
			SourceID:      newsSourceID,
			Author:        name,
			Hint:          string(ingest.HintNews),
			Lexicon:       "news",
			ConvertScript: true,
			UserAgent:     "Mozilla/5.0 (compatible; AnthropoReader/1.0)",
		}
	}
	return []ingest.SourceConfig{
		{
			Key:        "scut_jw",
			Name:       "华南理工大学本科生院",
			Kind:       ingest.KindSession,
			URL:        scutBase,
			Collection: noticeTable,
			SourceID:   "SCUT_JW",
			Author:     "华南理工大学本科生院",
			Hint:       string(ingest.HintNotice),
			Lexicon:    "notice",
			Session: ingest.SessionOptions{
				LandingURL:        scutBase + "/zhinan/cms/toPosts.do",
				SearchURL:         scutBase + "/zhinan/cms/article/v2/findInformNotice.do",
				DetailURLTemplate: scutBase + "/zhinan/cms/article/view.do?type=posts&id={id}",
				Origin:            scutBase,
				PageSize:          15,
				MaxPages:          3,
				CategoryNames: map[string]string{
					"1": "选课",
					"2": "考试",
					"3": "实践",
					"4": "交流",
					"5": "教师",
					"6": "信息",
				},
				DefaultCategory: "通知",
			},
		},
		{
			Key:        "github_trending",
			Name:       "GitHub Trending",
			Kind:       ingest.KindSearch,
			URL:        "https://api.github.com/search/repositories",
			Collection: projectsTable,
			SourceID:   "github_trending",
			Hint:       string(ingest.HintGitHubProject),
			Lexicon:    "github",
			Search: ingest.SearchOptions{
				MinStars:          100,
				CreatedWithinDays: 30,
				OverFetchFactor:   3,
			},
		},
		feed("bbc_chinese", "BBC中文", "https://feeds.bbci.co.uk/zhongwen/simp/rss.xml"),
		feed("nytimes_chinese", "纽约时报中文", "https://cn.nytimes.com/rss/"),
		feed("wsj_chinese", "华尔街日报中文", "https://cn.wsj.com/zh-hans/rss"),
		feed("economist", "The Economist", "https://www.economist.com/the-world-this-week/rss.xml"),
	}
}

// DefaultLexicons returns the built-in keyword profiles keyed by name.
func DefaultLexicons() map[string]Lexicon {
	return map[string]Lexicon{
		"notice": {
			High: []string{
				"微电子", "集成电路", "芯片", "半导体",
				"保研", "推免", "实习",
				"广州国际校区", "GZIC", "国际校区",
				"电子科学与技术", "微电子科学与工程",
			},
			Low: []string{
				"选课", "放假", "通知", "考试", "补考", "重修",
				"教学", "课程", "成绩", "学分",
			},
		},
		"news": {
			High: []string{
				"政治", "经济", "政策", "GDP", "贸易", "选举",
				"AI", "人工智能", "芯片", "半导体", "GPT", "LLM",
				"Apple", "Google", "Microsoft", "OpenAI", "Huawei",
				"裁员", "融资", "上市", "重大", "突发", "深度", "调查",
			},
			DefaultHighCategories: []string{newsCategory},
		},
		"github": {
			Frontier: []string{
				"llm", "agent", "rag", "diffusion", "transformer",
				"gpt", "mcp", "multimodal", "inference", "ai",
			},
			Exclude: []string{
				"awesome", "tutorial", "interview", "roadmap", "cheatsheet",
				"course", "books", "resources", "collection", "learn",
			},
		},
	}
}

// DefaultUserAgents is the rotation pool for the session adapter.
func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36",
	}
}
