// Package bundle generates the self-contained worker script that serves a
// deployed app: embedded code files, redirect table for offloaded assets,
// an API proxy sub-router, and SPA fallback routing.
package bundle

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/appforge/platform/internal/app/domain/app"
	"github.com/appforge/platform/internal/app/domain/build"
	"github.com/appforge/platform/internal/app/domain/bundle"
	"github.com/appforge/platform/internal/app/metrics"
	"github.com/appforge/platform/pkg/logger"
)

// PublicEnvPrefix marks environment variables safe to expose to the
// browser. Variables outside the prefix and the allow-list stay
// server-side only.
const PublicEnvPrefix = "PUBLIC_"

// envAllowList names the non-prefixed variables apps may read client-side.
var envAllowList = map[string]struct{}{
	"API_URL":           {},
	"APP_ID":            {},
	"ENVIRONMENT":       {},
	"SUPABASE_URL":      {},
	"SUPABASE_ANON_KEY": {},
}

// Params carries everything the generator embeds into a worker script.
type Params struct {
	AppID       string
	Environment app.Environment
	CodeFiles   build.Artifact
	AssetURLs   map[string]string
	EnvVars     map[string]string

	// BackendName is the designated /api/<backend> prefix; only requests
	// under it are proxied. BackendURL is where they go, ServiceToken is
	// attached server-side as the proxy credential.
	BackendName  string
	BackendURL   string
	ServiceToken string
}

// Generator produces worker bundles from classified build output.
type Generator struct {
	log *logger.Logger
}

// NewGenerator creates a worker bundle generator.
func NewGenerator(log *logger.Logger) *Generator {
	return &Generator{log: log.Component("bundle-generator")}
}

type embeddedFile struct {
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

// Generate renders the worker script for one environment. The script is
// syntax-checked before it is accepted, and a script over the size limit
// returns a *bundle.SizeLimitError without any upload being attempted.
func (g *Generator) Generate(p Params) (*bundle.WorkerBundle, error) {
	code := make(build.Artifact, len(p.CodeFiles))
	for path, content := range p.CodeFiles {
		code[path] = content
	}
	if html, ok := code["index.html"]; ok {
		code["index.html"] = InjectEnvScript(html, FilterEnv(p.EnvVars))
	}

	files := make(map[string]embeddedFile, len(code))
	for path, content := range code {
		files[path] = embeddedFile{Content: content, ContentType: build.ContentTypeFor(path)}
	}

	filesJSON, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encode code files: %w", err)
	}
	assets := p.AssetURLs
	if assets == nil {
		assets = map[string]string{}
	}
	assetsJSON, err := json.Marshal(assets)
	if err != nil {
		return nil, fmt.Errorf("encode asset urls: %w", err)
	}

	script := renderScript(scriptVars{
		CodeFiles:    string(filesJSON),
		AssetURLs:    string(assetsJSON),
		BackendName:  jsString(p.BackendName),
		BackendURL:   jsString(strings.TrimRight(p.BackendURL, "/")),
		ServiceToken: jsString(p.ServiceToken),
	})

	if _, err := goja.Compile("worker.js", script, true); err != nil {
		return nil, fmt.Errorf("generated worker script does not parse: %w", err)
	}

	b := &bundle.WorkerBundle{
		Environment: p.Environment,
		Script:      script,
		CodeFiles:   code,
		AssetURLs:   assets,
		Size:        len(script),
	}
	metrics.RecordBundleSize(b.Size)

	if b.Size > bundle.MaxScriptBytes {
		g.log.WithField("app_id", p.AppID).
			WithField("size_mb", fmt.Sprintf("%.2f", b.SizeMB())).
			Warn("worker bundle over size limit")
		return nil, &bundle.SizeLimitError{Size: b.Size}
	}

	g.log.WithField("app_id", p.AppID).
		WithField("environment", string(p.Environment)).
		WithField("files", len(code)).
		WithField("assets", len(assets)).
		WithField("size_bytes", b.Size).
		Info("worker bundle generated")
	return b, nil
}

// FilterEnv keeps only variables apps may read in the browser: the
// explicit allow-list plus the public prefix convention.
func FilterEnv(vars map[string]string) map[string]string {
	out := make(map[string]string)
	for key, value := range vars {
		if _, ok := envAllowList[key]; ok {
			out[key] = value
			continue
		}
		if strings.HasPrefix(key, PublicEnvPrefix) {
			out[key] = value
		}
	}
	return out
}

// InjectEnvScript inserts a window.ENV script tag into an HTML document:
// immediately before </head> when present, else after <body>, else
// prepended to the document.
func InjectEnvScript(html string, env map[string]string) string {
	tag := envScriptTag(env)

	if idx := strings.Index(strings.ToLower(html), "</head>"); idx >= 0 {
		return html[:idx] + tag + html[idx:]
	}
	lower := strings.ToLower(html)
	if idx := strings.Index(lower, "<body"); idx >= 0 {
		if end := strings.Index(html[idx:], ">"); end >= 0 {
			at := idx + end + 1
			return html[:at] + tag + html[at:]
		}
	}
	return tag + html
}

func envScriptTag(env map[string]string) string {
	// json.Marshal emits map keys sorted, so the tag is byte-stable
	// across deploys of the same inputs.
	blob, _ := json.Marshal(env)
	return "<script>window.ENV = " + string(blob) + ";</script>"
}

func jsString(s string) string {
	blob, _ := json.Marshal(s)
	return string(blob)
}

type scriptVars struct {
	CodeFiles    string
	AssetURLs    string
	BackendName  string
	BackendURL   string
	ServiceToken string
}

func renderScript(v scriptVars) string {
	r := strings.NewReplacer(
		"__CODE_FILES__", v.CodeFiles,
		"__ASSET_URLS__", v.AssetURLs,
		"__BACKEND_NAME__", v.BackendName,
		"__BACKEND_URL__", v.BackendURL,
		"__SERVICE_TOKEN__", v.ServiceToken,
	)
	return r.Replace(workerTemplate)
}

// workerTemplate is the worker runtime. ES5 only: the edge platform's
// script parser predates most ES2015 syntax.
const workerTemplate = `'use strict';

var CODE_FILES = __CODE_FILES__;
var ASSET_URLS = __ASSET_URLS__;
var BACKEND_NAME = __BACKEND_NAME__;
var BACKEND_URL = __BACKEND_URL__;
var SERVICE_TOKEN = __SERVICE_TOKEN__;

function normalizePath(pathname) {
  var path = pathname;
  while (path.charAt(0) === '/') {
    path = path.slice(1);
  }
  if (path === '') {
    return 'index.html';
  }
  return path;
}

function routePath(pathname) {
  if (pathname === '/api' || pathname.indexOf('/api/') === 0) {
    var rest = pathname.slice(4);
    var prefix = '/' + BACKEND_NAME;
    if (BACKEND_URL !== '' && BACKEND_NAME !== '' &&
        (rest === prefix || rest.indexOf(prefix + '/') === 0)) {
      var forwarded = rest.slice(prefix.length);
      if (forwarded === '') {
        forwarded = '/';
      }
      return { kind: 'proxy', status: 0, target: BACKEND_URL + forwarded };
    }
    return { kind: 'not_found', status: 404 };
  }

  var path = normalizePath(pathname);

  if (ASSET_URLS.hasOwnProperty(path)) {
    return { kind: 'redirect', status: 301, location: ASSET_URLS[path] };
  }
  if (CODE_FILES.hasOwnProperty(path)) {
    return { kind: 'file', status: 200, path: path };
  }
  if (CODE_FILES.hasOwnProperty('index.html')) {
    return { kind: 'file', status: 200, path: 'index.html' };
  }
  return { kind: 'not_found', status: 404 };
}

function cacheControlFor(contentType) {
  if (contentType.indexOf('text/html') === 0) {
    return 'no-cache';
  }
  return 'public, max-age=86400';
}

function serveRoute(request, route) {
  if (route.kind === 'proxy') {
    var headers = new Headers(request.headers);
    headers.set('Authorization', 'Bearer ' + SERVICE_TOKEN);
    return fetch(route.target, {
      method: request.method,
      headers: headers,
      body: request.body
    });
  }
  if (route.kind === 'redirect') {
    return new Response(null, {
      status: 301,
      headers: { 'Location': route.location }
    });
  }
  if (route.kind === 'file') {
    var file = CODE_FILES[route.path];
    return new Response(file.content, {
      status: 200,
      headers: {
        'Content-Type': file.contentType,
        'Cache-Control': cacheControlFor(file.contentType)
      }
    });
  }
  return new Response('not found', { status: 404 });
}

addEventListener('fetch', function (event) {
  var url = new URL(event.request.url);
  event.respondWith(serveRoute(event.request, routePath(url.pathname)));
});
`
