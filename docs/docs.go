// Package docs holds the Swagger document served under /swagger.
// Regenerate with: swag init -g cmd/pipeline-api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/runs": {
            "get": {
                "description": "Get every run with its current status, newest first",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "List all runs",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Run"}}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "post": {
                "description": "Upload a CSV and an optional shapefile zip or GeoJSON, then evaluate, cluster, merge and render asynchronously",
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Create a new analysis run",
                "parameters": [
                    {"type": "file", "description": "CSV with one row per entity", "name": "data", "in": "formData", "required": true},
                    {"type": "file", "description": "Zipped shapefile", "name": "shapefile", "in": "formData"},
                    {"type": "file", "description": "GeoJSON FeatureCollection", "name": "geojson", "in": "formData"},
                    {"type": "integer", "description": "Smallest k to evaluate", "name": "k_min", "in": "formData"},
                    {"type": "integer", "description": "Largest k to evaluate", "name": "k_max", "in": "formData"},
                    {"type": "integer", "description": "Final k; best k when omitted", "name": "k", "in": "formData"},
                    {"type": "string", "description": "Entity name column", "name": "entity_column", "in": "formData"}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/handler.CreateRunResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "description": "Retrieve the status, best k and stage progress of a run",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.RunResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            },
            "delete": {
                "description": "Cancel the run if still running and reset its session",
                "tags": ["runs"],
                "summary": "Delete run",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/evaluation": {
            "get": {
                "description": "SSW, SSB and Davies-Bouldin index for every evaluated k, plus the selected k",
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Get evaluation",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.EvaluationResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}},
                    "409": {"description": "Evaluation has not run", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/clusters": {
            "get": {
                "description": "Centroids, per-cluster means and counts, and the per-observation clustering table",
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Get clusters",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.ClustersResponse"}},
                    "409": {"description": "Clustering has not run", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/interpretation": {
            "get": {
                "description": "Per-cluster means with features flagged high or low against the global mean",
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Get interpretation",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.ClusterInterpretation"}}},
                    "409": {"description": "Clusters have not been interpreted", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/merge": {
            "get": {
                "description": "Entities missing on either side of the geometry join and the matched count",
                "produces": ["application/json"],
                "tags": ["stages"],
                "summary": "Get merge report",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.MergeReport"}},
                    "409": {"description": "Geo merge has not run", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/map": {
            "get": {
                "description": "Leaflet choropleth of the merged geometry, or the fallback base map with its defect message",
                "produces": ["text/html"],
                "tags": ["artifacts"],
                "summary": "Get cluster map",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "HTML page", "schema": {"type": "string"}},
                    "409": {"description": "Map has not been rendered", "schema": {"$ref": "#/definitions/handler.ErrorResponse"}}
                }
            }
        },
        "/runs/{id}/charts/evaluation": {
            "get": {
                "produces": ["text/html"],
                "tags": ["artifacts"],
                "summary": "Get evaluation chart",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "HTML page", "schema": {"type": "string"}}}
            }
        },
        "/runs/{id}/charts/scatter": {
            "get": {
                "produces": ["text/html"],
                "tags": ["artifacts"],
                "summary": "Get cluster scatter chart",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "HTML page", "schema": {"type": "string"}}}
            }
        },
        "/runs/{id}/geojson": {
            "get": {
                "produces": ["application/json"],
                "tags": ["artifacts"],
                "summary": "Download GeoJSON",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "FeatureCollection", "schema": {"type": "string"}}}
            }
        },
        "/runs/{id}/shapefile": {
            "get": {
                "produces": ["application/zip"],
                "tags": ["artifacts"],
                "summary": "Download shapefile",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "Zipped .shp/.shx/.dbf/.prj", "schema": {"type": "file"}}}
            }
        },
        "/runs/{id}/table.csv": {
            "get": {
                "produces": ["text/csv"],
                "tags": ["artifacts"],
                "summary": "Download clustering table",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "CSV", "schema": {"type": "string"}}}
            }
        },
        "/runs/{id}/files": {
            "get": {
                "produces": ["application/json"],
                "tags": ["artifacts"],
                "summary": "List run artifacts",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.FileInfo"}}}}
            }
        },
        "/runs/{id}/files/{name}": {
            "get": {
                "tags": ["artifacts"],
                "summary": "Download run artifact",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "string", "description": "File name", "name": "name", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/runs/{id}/errors": {
            "get": {
                "description": "Stage failures and recorded warnings of a run",
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run errors",
                "parameters": [{"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        },
        "/runs/{id}/logs": {
            "get": {
                "produces": ["application/json"],
                "tags": ["runs"],
                "summary": "Get run logs",
                "parameters": [
                    {"type": "string", "description": "Run ID", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "default": 100, "description": "Maximum number of lines", "name": "limit", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object", "additionalProperties": true}}}
            }
        }
    },
    "definitions": {
        "handler.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "message": {"type": "string"}}
        },
        "handler.CreateRunResponse": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"},
                "links": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handler.RunResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "best_k": {"type": "integer"},
                "error": {"type": "string"},
                "stages": {"type": "array", "items": {"type": "object"}}
            }
        },
        "handler.EvaluationResponse": {
            "type": "object",
            "properties": {
                "table": {"type": "array", "items": {"$ref": "#/definitions/model.EvaluationRow"}},
                "best_k": {"type": "integer"},
                "best_dbi": {"type": "number"},
                "k_min": {"type": "integer"},
                "k_max": {"type": "integer"},
                "excluded_k": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "handler.ClustersResponse": {
            "type": "object",
            "properties": {
                "k": {"type": "integer"},
                "features": {"type": "array", "items": {"type": "string"}},
                "centroids": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}},
                "cluster_summary": {"type": "object"},
                "cluster_counts": {"type": "object"},
                "entity_column": {"type": "string"},
                "clustering_table": {"type": "array", "items": {"type": "object"}},
                "warnings": {"type": "array", "items": {"type": "string"}}
            }
        },
        "handler.FileInfo": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "type": {"type": "string"},
                "size": {"type": "integer"},
                "download_url": {"type": "string"}
            }
        },
        "model.Run": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "status": {"type": "string"},
                "best_k": {"type": "integer"},
                "error": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "model.EvaluationRow": {
            "type": "object",
            "properties": {
                "k": {"type": "integer"},
                "ssw": {"type": "number"},
                "ssb": {"type": "number"},
                "dbi": {"type": "number"},
                "excluded_from_selection": {"type": "boolean"}
            }
        },
        "model.ClusterInterpretation": {
            "type": "object",
            "properties": {
                "cluster": {"type": "integer"},
                "count": {"type": "integer"},
                "means": {"type": "object", "additionalProperties": {"type": "number"}},
                "flagged_features": {"type": "object", "additionalProperties": {"type": "string"}},
                "high": {"type": "array", "items": {"type": "string"}},
                "low": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.MergeReport": {
            "type": "object",
            "properties": {
                "missing_in_geometry": {"type": "array", "items": {"type": "string"}},
                "missing_in_partition_data": {"type": "array", "items": {"type": "string"}},
                "total_matched": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Geo Cluster Pipeline API",
	Description:      "Normalizes regional indicators, selects k by Davies-Bouldin, clusters, interprets and renders the clusters on a map.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
