// Package schemafile declares resource classes from a YAML document.
//
//	classes:
//	  - name: User
//	    has_many: [{name: posts}]
//	    belongs_to: [{name: team}]
//	    scopes:
//	      - name: active
//	        conditions: {active: true}
//	      - name: born
//	        params: [date, "*tags"]
//	        expr: '{"birthday": {"date": date}, "tags": tags}'
//	  - name: Admin
//	    extends: User
//	    path: /admins
//	  - name: Post
//	  - name: Team
//
// Expression scopes are compiled with expr-lang once at load time and
// evaluated with the bound arguments on every application.
package schemafile
